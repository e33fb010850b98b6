package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/tidelock/stashbox/internal/crypto"
	"github.com/tidelock/stashbox/internal/domain"
	"github.com/tidelock/stashbox/internal/metrics"
)

const defaultMigrationBatchSize = 100

// Service is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases. Every secret
// leaving this layer through CRUD operations carries a masked value;
// RevealSecret is the single path to plaintext.
type Service struct {
	secrets domain.SecretRepository
	crypto  *crypto.Service
	limiter domain.RevealLimiter
	clock   clockwork.Clock
}

// NewService creates the application layer service.
// limiter may be nil, in which case reveals are never rate-limited.
func NewService(secrets domain.SecretRepository, cryptoSvc *crypto.Service, limiter domain.RevealLimiter, clock clockwork.Clock) *Service {
	return &Service{
		secrets: secrets,
		crypto:  cryptoSvc,
		limiter: limiter,
		clock:   clock,
	}
}

// CreateSecret stores a new secret and returns it with a masked value.
func (s *Service) CreateSecret(ctx context.Context, name string, kind domain.SecretKind, value string) (*domain.Secret, error) {
	secret, err := s.secrets.Create(ctx, name, kind, value)
	if err != nil {
		return nil, err
	}
	return masked(secret), nil
}

// GetSecret retrieves a secret by ID with a masked value.
func (s *Service) GetSecret(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	secret, err := s.secrets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return masked(secret), nil
}

// ListSecrets retrieves all secrets with masked values.
func (s *Service) ListSecrets(ctx context.Context) ([]domain.Secret, error) {
	secrets, err := s.secrets.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range secrets {
		secrets[i].Value = crypto.MaskAPIKey(secrets[i].Value)
	}
	return secrets, nil
}

// RevealSecret returns a secret's plaintext value. Reveals are rate-limited
// per client; exceeding the limit returns domain.ErrRevealRateLimited.
func (s *Service) RevealSecret(ctx context.Context, id uuid.UUID, clientID string) (string, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, clientID)
		if err != nil {
			return "", fmt.Errorf("failed to check reveal rate limit: %w", err)
		}
		if !allowed {
			metrics.RevealRateLimitedTotal.Inc()
			return "", domain.ErrRevealRateLimited
		}
	}

	secret, err := s.secrets.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	metrics.SecretsRevealedTotal.Inc()
	slog.InfoContext(ctx, "Secret revealed", "secret_id", id.String(), "name", secret.Name)
	return secret.Value, nil
}

// UpdateSecret replaces a secret's value and returns it masked. The new value
// is always encrypted under the current key version.
func (s *Service) UpdateSecret(ctx context.Context, id uuid.UUID, value string) (*domain.Secret, error) {
	secret, err := s.secrets.Update(ctx, id, value)
	if err != nil {
		return nil, err
	}
	return masked(secret), nil
}

// RotateSecret re-encrypts a secret's envelope under the current key version
// and canonical format without changing its plaintext. Rotating an
// already-current secret is a no-op.
func (s *Service) RotateSecret(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	envelope, err := s.secrets.GetEnvelope(ctx, id)
	if err != nil {
		return nil, err
	}

	stale, err := s.crypto.NeedsMigration(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect envelope for secret %s: %w", id, err)
	}
	if stale {
		start := s.clock.Now()
		rewritten, err := s.crypto.ReEncrypt(envelope)
		metrics.ObserveCryptoOp("re_encrypt", s.clock.Since(start).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("failed to rotate secret %s: %w", id, err)
		}

		swapped, err := s.secrets.SwapEnvelope(ctx, id, envelope, rewritten)
		if err != nil {
			return nil, err
		}
		if !swapped {
			// Concurrent update rewrote the row under the current key already.
			slog.InfoContext(ctx, "Rotation skipped, envelope changed concurrently", "secret_id", id.String())
		}
	}

	return s.GetSecret(ctx, id)
}

// DeleteSecret removes a secret.
func (s *Service) DeleteSecret(ctx context.Context, id uuid.UUID) error {
	return s.secrets.Delete(ctx, id)
}

// MigrateEnvelopes scans all stored envelopes in ID order and re-encrypts
// every stale one under the current key version and canonical format. A
// single failed envelope is counted and skipped, never aborting the run.
func (s *Service) MigrateEnvelopes(ctx context.Context, opts domain.MigrationOptions) (*domain.MigrationReport, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultMigrationBatchSize
	}

	start := s.clock.Now()
	report := &domain.MigrationReport{}

	afterID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		records, err := s.secrets.ListEnvelopes(ctx, afterID, batchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list envelopes: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			report.Scanned++
			s.migrateOne(ctx, rec, opts.DryRun, report)
		}
		afterID = records[len(records)-1].ID
	}

	report.Duration = s.clock.Since(start)
	slog.InfoContext(ctx, "Envelope migration finished",
		"scanned", report.Scanned,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"dry_run", opts.DryRun,
		"duration", report.Duration.String())
	return report, nil
}

func (s *Service) migrateOne(ctx context.Context, rec domain.EnvelopeRecord, dryRun bool, report *domain.MigrationReport) {
	stale, err := s.crypto.NeedsMigration(rec.Envelope)
	if err != nil {
		report.Failed++
		metrics.EnvelopeMigrationFailuresTotal.Inc()
		slog.WarnContext(ctx, "Unparseable envelope", "secret_id", rec.ID.String(), "error", err)
		return
	}
	if !stale {
		report.Skipped++
		return
	}

	if dryRun {
		report.Migrated++
		return
	}

	start := s.clock.Now()
	rewritten, err := s.crypto.ReEncrypt(rec.Envelope)
	metrics.ObserveCryptoOp("re_encrypt", s.clock.Since(start).Seconds(), err)
	if err != nil {
		report.Failed++
		metrics.EnvelopeMigrationFailuresTotal.Inc()
		slog.WarnContext(ctx, "Failed to re-encrypt envelope", "secret_id", rec.ID.String(), "error", err)
		return
	}

	swapped, err := s.secrets.SwapEnvelope(ctx, rec.ID, rec.Envelope, rewritten)
	if err != nil {
		report.Failed++
		metrics.EnvelopeMigrationFailuresTotal.Inc()
		slog.WarnContext(ctx, "Failed to store migrated envelope", "secret_id", rec.ID.String(), "error", err)
		return
	}
	if !swapped {
		// Row changed between read and write; the concurrent writer already
		// encrypted under the current key.
		report.Skipped++
		return
	}

	report.Migrated++
	metrics.EnvelopesMigratedTotal.Inc()
}

func masked(secret *domain.Secret) *domain.Secret {
	out := *secret
	out.Value = crypto.MaskAPIKey(out.Value)
	return &out
}

var _ domain.AppService = (*Service)(nil)
