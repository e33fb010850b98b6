package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tidelock/stashbox/internal/domain"
	apperrors "github.com/tidelock/stashbox/internal/errors"
	"github.com/tidelock/stashbox/internal/platform/config"
)

const testAdminToken = "test-admin-token"

// --- Mock implementations ---

type mockAppService struct {
	createSecretFn     func(ctx context.Context, name string, kind domain.SecretKind, value string) (*domain.Secret, error)
	getSecretFn        func(ctx context.Context, id uuid.UUID) (*domain.Secret, error)
	listSecretsFn      func(ctx context.Context) ([]domain.Secret, error)
	revealSecretFn     func(ctx context.Context, id uuid.UUID, clientID string) (string, error)
	updateSecretFn     func(ctx context.Context, id uuid.UUID, value string) (*domain.Secret, error)
	rotateSecretFn     func(ctx context.Context, id uuid.UUID) (*domain.Secret, error)
	deleteSecretFn     func(ctx context.Context, id uuid.UUID) error
	migrateEnvelopesFn func(ctx context.Context, opts domain.MigrationOptions) (*domain.MigrationReport, error)
}

func (m *mockAppService) CreateSecret(ctx context.Context, name string, kind domain.SecretKind, value string) (*domain.Secret, error) {
	if m.createSecretFn != nil {
		return m.createSecretFn(ctx, name, kind, value)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAppService) GetSecret(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	if m.getSecretFn != nil {
		return m.getSecretFn(ctx, id)
	}
	return nil, domain.ErrSecretNotFound
}

func (m *mockAppService) ListSecrets(ctx context.Context) ([]domain.Secret, error) {
	if m.listSecretsFn != nil {
		return m.listSecretsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) RevealSecret(ctx context.Context, id uuid.UUID, clientID string) (string, error) {
	if m.revealSecretFn != nil {
		return m.revealSecretFn(ctx, id, clientID)
	}
	return "", domain.ErrSecretNotFound
}

func (m *mockAppService) UpdateSecret(ctx context.Context, id uuid.UUID, value string) (*domain.Secret, error) {
	if m.updateSecretFn != nil {
		return m.updateSecretFn(ctx, id, value)
	}
	return nil, domain.ErrSecretNotFound
}

func (m *mockAppService) RotateSecret(ctx context.Context, id uuid.UUID) (*domain.Secret, error) {
	if m.rotateSecretFn != nil {
		return m.rotateSecretFn(ctx, id)
	}
	return nil, domain.ErrSecretNotFound
}

func (m *mockAppService) DeleteSecret(ctx context.Context, id uuid.UUID) error {
	if m.deleteSecretFn != nil {
		return m.deleteSecretFn(ctx, id)
	}
	return domain.ErrSecretNotFound
}

func (m *mockAppService) MigrateEnvelopes(ctx context.Context, opts domain.MigrationOptions) (*domain.MigrationReport, error) {
	if m.migrateEnvelopesFn != nil {
		return m.migrateEnvelopesFn(ctx, opts)
	}
	return &domain.MigrationReport{}, nil
}

// --- Test helpers ---

// newTestServer builds a Server without the prometheus middleware, which
// registers collectors globally and cannot be installed twice.
func newTestServer(t *testing.T, app domain.AppService, opts ...func(*Server)) *Server {
	t.Helper()

	e := echo.New()
	// Install error middleware for tests to match production behavior
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    &config.Config{AdminToken: testAdminToken, Port: "8080"},
		app:       app,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func withPostgresHealthCheck(pg postgresHealthChecker) func(*Server) {
	return func(s *Server) {
		s.postgres = pg
	}
}

type failingPostgres struct{}

func (failingPostgres) Ping(context.Context) error { return fmt.Errorf("connection refused") }

// doRequest runs a request through the full router, including auth middleware.
func doRequest(srv *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authed {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+testAdminToken)
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// doRequestWithToken is doRequest with an explicit bearer token.
func doRequestWithToken(srv *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func testSecret(name, maskedValue string) *domain.Secret {
	return &domain.Secret{
		ID:        uuid.New(),
		Name:      name,
		Kind:      domain.KindAPIKey,
		Value:     maskedValue,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

var _ domain.AppService = (*mockAppService)(nil)
