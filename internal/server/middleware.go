package server

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/tidelock/stashbox/internal/errors"
)

const bearerPrefix = "Bearer "

// requireAuth checks the Authorization header against the configured admin
// token. The comparison is constant-time so the token cannot be probed
// byte-by-byte through response timing.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			return apperrors.UnauthorizedError("missing bearer token")
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
			return apperrors.UnauthorizedError("invalid token")
		}

		// The reveal rate limiter keys on this.
		c.Set("clientID", clientID(c))
		return next(c)
	}
}

// clientID identifies the caller for rate limiting. Prefers the standard
// forwarding headers so limits survive a reverse proxy, falling back to the
// connection's remote address.
func clientID(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return c.Request().RemoteAddr
}
