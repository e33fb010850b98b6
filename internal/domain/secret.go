package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SecretKind classifies what a stored secret is. Informational only; all
// kinds are encrypted the same way.
type SecretKind string

const (
	KindAPIKey            SecretKind = "api_key"
	KindOAuthClientSecret SecretKind = "oauth_client_secret"
	KindAccessToken       SecretKind = "access_token"
	KindRefreshToken      SecretKind = "refresh_token"
)

// ValidKind reports whether k is one of the known secret kinds.
func ValidKind(k SecretKind) bool {
	switch k {
	case KindAPIKey, KindOAuthClientSecret, KindAccessToken, KindRefreshToken:
		return true
	}
	return false
}

// Secret is a stored credential. Value holds plaintext only while a request
// is in flight — the repository decrypts on read and encrypts on write, and
// nothing ever persists or logs the plaintext.
type Secret struct {
	ID        uuid.UUID  `db:"id"`
	Name      string     `db:"name"`
	Kind      SecretKind `db:"kind"`
	Value     string     `db:"-"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// EnvelopeRecord pairs a secret ID with its stored ciphertext envelope,
// without decrypting it. Used by the migration sweep, which only needs to
// inspect and rewrite envelopes.
type EnvelopeRecord struct {
	ID       uuid.UUID
	Envelope string
}

// SecretRepository abstracts secret persistence. Implementations own the
// encrypt-on-write / decrypt-on-read boundary.
type SecretRepository interface {
	Create(ctx context.Context, name string, kind SecretKind, value string) (*Secret, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Secret, error)
	GetByName(ctx context.Context, name string) (*Secret, error)
	List(ctx context.Context) ([]Secret, error)
	Update(ctx context.Context, id uuid.UUID, value string) (*Secret, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// GetEnvelope returns a secret's stored envelope without decrypting it.
	GetEnvelope(ctx context.Context, id uuid.UUID) (string, error)
	// ListEnvelopes pages raw envelopes by ascending ID for the migration
	// sweep. Pass uuid.Nil to start from the beginning.
	ListEnvelopes(ctx context.Context, afterID uuid.UUID, limit int) ([]EnvelopeRecord, error)
	// SwapEnvelope replaces a secret's envelope only if it still matches
	// oldEnvelope, so a concurrent update is never clobbered. Returns false
	// when the row changed underneath the sweep.
	SwapEnvelope(ctx context.Context, id uuid.UUID, oldEnvelope, newEnvelope string) (bool, error)
}

// RevealLimiter rate-limits plaintext reveals per calling client.
type RevealLimiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}

// MigrationOptions tunes a bulk envelope migration run.
type MigrationOptions struct {
	BatchSize int
	DryRun    bool
}

// MigrationReport summarizes one migration sweep.
type MigrationReport struct {
	Scanned  int           `json:"scanned"`
	Migrated int           `json:"migrated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"-"`
}

// AppService is the application layer contract — handlers route all
// operations through here.
type AppService interface {
	CreateSecret(ctx context.Context, name string, kind SecretKind, value string) (*Secret, error)
	GetSecret(ctx context.Context, id uuid.UUID) (*Secret, error)
	ListSecrets(ctx context.Context) ([]Secret, error)
	RevealSecret(ctx context.Context, id uuid.UUID, clientID string) (string, error)
	UpdateSecret(ctx context.Context, id uuid.UUID, value string) (*Secret, error)
	RotateSecret(ctx context.Context, id uuid.UUID) (*Secret, error)
	DeleteSecret(ctx context.Context, id uuid.UUID) error
	MigrateEnvelopes(ctx context.Context, opts MigrationOptions) (*MigrationReport, error)
}
