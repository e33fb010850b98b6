package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/secrets", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware()(handler)(c)
	return rec, err
}

func TestMiddleware_NoError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_StructuredError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return NotFoundError("secret not found").WithField("secret_id", "abc")
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "secret not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "abc", resp.Context["secret_id"])
}

func TestMiddleware_PlainErrorBecomesInternal(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return errors.New("database exploded")
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Internal causes are never leaked to clients.
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestMiddleware_EchoHTTPErrorPassesThrough(t *testing.T) {
	httpErr := echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	_, err := runMiddleware(t, func(c echo.Context) error {
		return httpErr
	})
	assert.Equal(t, httpErr, err)
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusUnauthorized, TypeUnauthorized},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusConflict, TypeConflict},
		{http.StatusTooManyRequests, TypeRateLimited},
		{http.StatusBadGateway, TypeInternal},
	}

	for _, tt := range tests {
		wrapped := WrapHTTPError(echo.NewHTTPError(tt.code, "msg"))
		assert.Equal(t, tt.want, wrapped.Type)
		assert.Equal(t, "msg", wrapped.Message)
	}
}
