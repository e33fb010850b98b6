package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidelock/stashbox/internal/crypto"
	"github.com/tidelock/stashbox/internal/domain"
	"github.com/tidelock/stashbox/internal/metrics"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// secretColumns must match the Scan order in scanSecret.
const secretColumns = `id, name, kind, encrypted_value, created_at, updated_at`

// SecretRepo implements domain.SecretRepository backed by PostgreSQL. It owns
// the encrypt-on-write / decrypt-on-read boundary: callers above it only ever
// see plaintext, the database only ever sees envelopes.
type SecretRepo struct {
	pool   *pgxpool.Pool
	crypto crypto.Encryptor
}

// NewSecretRepo creates a SecretRepo using the given encryptor.
func NewSecretRepo(pool *pgxpool.Pool, enc crypto.Encryptor) *SecretRepo {
	return &SecretRepo{pool: pool, crypto: instrumentedEncryptor{enc}}
}

// instrumentedEncryptor records operation metrics around the repository's
// encrypt-on-write / decrypt-on-read boundary.
type instrumentedEncryptor struct {
	inner crypto.Encryptor
}

func (e instrumentedEncryptor) Encrypt(plaintext string) (string, error) {
	start := time.Now()
	envelope, err := e.inner.Encrypt(plaintext)
	metrics.ObserveCryptoOp("encrypt", time.Since(start).Seconds(), err)
	return envelope, err
}

func (e instrumentedEncryptor) Decrypt(encoded string) (string, error) {
	start := time.Now()
	plaintext, err := e.inner.Decrypt(encoded)
	metrics.ObserveCryptoOp("decrypt", time.Since(start).Seconds(), err)
	return plaintext, err
}

func (r *SecretRepo) scanSecret(row pgx.Row) (*domain.Secret, error) {
	var (
		secret   domain.Secret
		envelope string
	)
	err := row.Scan(&secret.ID, &secret.Name, &secret.Kind, &envelope, &secret.CreatedAt, &secret.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan secret: %w", err)
	}

	secret.Value, err = r.crypto.Decrypt(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret %s: %w", secret.ID, err)
	}
	return &secret, nil
}

func (r *SecretRepo) Create(ctx context.Context, name string, kind domain.SecretKind, value string) (*domain.Secret, error) {
	envelope, err := r.crypto.Encrypt(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	secret, err := r.scanSecret(r.pool.QueryRow(ctx, `
		INSERT INTO secrets (name, kind, encrypted_value, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+secretColumns,
		name, kind, envelope))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrSecretExists
		}
		return nil, fmt.Errorf("failed to create secret: %w", err)
	}
	return secret, nil
}

func (r *SecretRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	return r.scanSecret(r.pool.QueryRow(ctx,
		`SELECT `+secretColumns+` FROM secrets WHERE id = $1`, id))
}

func (r *SecretRepo) GetByName(ctx context.Context, name string) (*domain.Secret, error) {
	return r.scanSecret(r.pool.QueryRow(ctx,
		`SELECT `+secretColumns+` FROM secrets WHERE name = $1`, name))
}

func (r *SecretRepo) List(ctx context.Context) ([]domain.Secret, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+secretColumns+` FROM secrets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var secrets []domain.Secret
	for rows.Next() {
		secret, err := r.scanSecret(rows)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, *secret)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	return secrets, nil
}

func (r *SecretRepo) Update(ctx context.Context, id uuid.UUID, value string) (*domain.Secret, error) {
	envelope, err := r.crypto.Encrypt(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	return r.scanSecret(r.pool.QueryRow(ctx, `
		UPDATE secrets
		SET encrypted_value = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+secretColumns,
		id, envelope))
}

func (r *SecretRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSecretNotFound
	}
	return nil
}

// GetEnvelope returns a secret's stored envelope as-is.
func (r *SecretRepo) GetEnvelope(ctx context.Context, id uuid.UUID) (string, error) {
	var envelope string
	err := r.pool.QueryRow(ctx,
		`SELECT encrypted_value FROM secrets WHERE id = $1`, id).Scan(&envelope)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get envelope: %w", err)
	}
	return envelope, nil
}

// ListEnvelopes pages raw envelopes by ascending ID without decrypting them.
func (r *SecretRepo) ListEnvelopes(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.EnvelopeRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encrypted_value FROM secrets
		WHERE id > $1
		ORDER BY id
		LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	defer rows.Close()

	var records []domain.EnvelopeRecord
	for rows.Next() {
		var rec domain.EnvelopeRecord
		if err := rows.Scan(&rec.ID, &rec.Envelope); err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	return records, nil
}

// SwapEnvelope is a compare-and-set: the migration sweep must never clobber
// a secret that was updated between its read and its write.
func (r *SecretRepo) SwapEnvelope(ctx context.Context, id uuid.UUID, oldEnvelope, newEnvelope string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE secrets
		SET encrypted_value = $3, updated_at = NOW()
		WHERE id = $1 AND encrypted_value = $2`,
		id, oldEnvelope, newEnvelope)
	if err != nil {
		return false, fmt.Errorf("failed to swap envelope: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ domain.SecretRepository = (*SecretRepo)(nil)
