package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Secret management (authenticated)
	api := s.echo.Group("/api", s.requireAuth)
	api.POST("/secrets", s.handleCreateSecret)
	api.GET("/secrets", s.handleListSecrets)
	api.GET("/secrets/:id", s.handleGetSecret)
	api.PUT("/secrets/:id", s.handleUpdateSecret)
	api.DELETE("/secrets/:id", s.handleDeleteSecret)

	// Plaintext reveal and key rotation are separate, auditable actions
	// rather than flags on the read endpoints.
	api.POST("/secrets/:id/reveal", s.handleRevealSecret)
	api.POST("/secrets/:id/rotate", s.handleRotateSecret)

	// Bulk envelope migration (authenticated)
	api.POST("/migrate", s.handleMigrateEnvelopes)
}
