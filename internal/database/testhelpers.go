package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tidelock/stashbox/internal/domain"
)

// CreateTestSecret inserts a secret with the given name and value, returning
// the stored row. Test use only.
func CreateTestSecret(t *testing.T, repo *SecretRepo, name, value string) *domain.Secret {
	t.Helper()

	secret, err := repo.Create(context.Background(), name, domain.KindAPIKey, value)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, secret.ID)
	return secret
}

// RawEnvelope reads a secret's stored envelope string directly, bypassing
// the decrypt-on-read boundary. Test use only.
func RawEnvelope(t *testing.T, repo *SecretRepo, id uuid.UUID) string {
	t.Helper()

	var envelope string
	err := repo.pool.QueryRow(context.Background(),
		`SELECT encrypted_value FROM secrets WHERE id = $1`, id).Scan(&envelope)
	require.NoError(t, err)
	return envelope
}

// WriteRawEnvelope overwrites a secret's stored envelope string directly,
// used to plant historical wire formats for migration tests.
func WriteRawEnvelope(t *testing.T, repo *SecretRepo, id uuid.UUID, envelope string) {
	t.Helper()

	_, err := repo.pool.Exec(context.Background(),
		`UPDATE secrets SET encrypted_value = $2 WHERE id = $1`, id, envelope)
	require.NoError(t, err)
}
