package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tidelock/stashbox/internal/domain"
	apperrors "github.com/tidelock/stashbox/internal/errors"
)

type createSecretRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type updateSecretRequest struct {
	Value string `json:"value"`
}

// secretResponse is the API shape of a secret. Value is always masked; the
// reveal endpoint is the only place plaintext appears.
type secretResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSecretResponse(s *domain.Secret) secretResponse {
	return secretResponse{
		ID:        s.ID.String(),
		Name:      s.Name,
		Kind:      string(s.Kind),
		Value:     s.Value,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (s *Server) handleCreateSecret(c echo.Context) error {
	var req createSecretRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}
	if req.Value == "" {
		return apperrors.ValidationError("value is required")
	}
	if !domain.ValidKind(domain.SecretKind(req.Kind)) {
		return apperrors.ValidationError("unknown secret kind").WithField("kind", req.Kind)
	}

	secret, err := s.app.CreateSecret(c.Request().Context(), req.Name, domain.SecretKind(req.Kind), req.Value)
	if err != nil {
		if errors.Is(err, domain.ErrSecretExists) {
			return apperrors.ConflictError("secret already exists").WithField("name", req.Name)
		}
		return apperrors.InternalError("failed to create secret", err)
	}

	return respondJSON(c, 201, toSecretResponse(secret))
}

func (s *Server) handleGetSecret(c echo.Context) error {
	id, err := secretIDParam(c)
	if err != nil {
		return err
	}

	secret, err := s.app.GetSecret(c.Request().Context(), id)
	if err != nil {
		return secretError(err, id)
	}
	return respondJSON(c, 200, toSecretResponse(secret))
}

func (s *Server) handleListSecrets(c echo.Context) error {
	secrets, err := s.app.ListSecrets(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list secrets", err)
	}

	out := make([]secretResponse, 0, len(secrets))
	for i := range secrets {
		out = append(out, toSecretResponse(&secrets[i]))
	}
	return respondJSON(c, 200, map[string]any{"secrets": out})
}

func (s *Server) handleUpdateSecret(c echo.Context) error {
	id, err := secretIDParam(c)
	if err != nil {
		return err
	}

	var req updateSecretRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Value == "" {
		return apperrors.ValidationError("value is required")
	}

	secret, err := s.app.UpdateSecret(c.Request().Context(), id, req.Value)
	if err != nil {
		return secretError(err, id)
	}
	return respondJSON(c, 200, toSecretResponse(secret))
}

func (s *Server) handleDeleteSecret(c echo.Context) error {
	id, err := secretIDParam(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteSecret(c.Request().Context(), id); err != nil {
		return secretError(err, id)
	}
	return c.NoContent(204)
}

func (s *Server) handleRevealSecret(c echo.Context) error {
	id, err := secretIDParam(c)
	if err != nil {
		return err
	}

	client, _ := c.Get("clientID").(string)
	value, err := s.app.RevealSecret(c.Request().Context(), id, client)
	if err != nil {
		if errors.Is(err, domain.ErrRevealRateLimited) {
			return apperrors.RateLimitedError("too many reveal requests")
		}
		return secretError(err, id)
	}
	return respondJSON(c, 200, map[string]string{"value": value})
}

func (s *Server) handleRotateSecret(c echo.Context) error {
	id, err := secretIDParam(c)
	if err != nil {
		return err
	}

	secret, err := s.app.RotateSecret(c.Request().Context(), id)
	if err != nil {
		return secretError(err, id)
	}
	return respondJSON(c, 200, toSecretResponse(secret))
}

func secretIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid secret ID").WithField("id", c.Param("id"))
	}
	return id, nil
}

// secretError maps domain errors to structured API errors. The error context
// may name a secret, never its value.
func secretError(err error, id uuid.UUID) error {
	if errors.Is(err, domain.ErrSecretNotFound) {
		return apperrors.NotFoundError("secret not found").WithField("secret_id", id.String())
	}
	return apperrors.InternalError("secret operation failed", err).WithField("secret_id", id.String())
}

func respondJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
