package server

import (
	"github.com/labstack/echo/v4"
	"github.com/tidelock/stashbox/internal/domain"
	apperrors "github.com/tidelock/stashbox/internal/errors"
)

type migrateRequest struct {
	BatchSize int  `json:"batch_size"`
	DryRun    bool `json:"dry_run"`
}

// handleMigrateEnvelopes runs a full migration pass synchronously and returns
// the report. Intended for operator use right after a key rotation; the
// background sweeper covers the steady state.
func (s *Server) handleMigrateEnvelopes(c echo.Context) error {
	var req migrateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.BatchSize < 0 {
		return apperrors.ValidationError("batch_size must not be negative")
	}

	report, err := s.app.MigrateEnvelopes(c.Request().Context(), domain.MigrationOptions{
		BatchSize: req.BatchSize,
		DryRun:    req.DryRun,
	})
	if err != nil {
		return apperrors.InternalError("envelope migration failed", err)
	}

	return respondJSON(c, 200, map[string]any{
		"scanned":          report.Scanned,
		"migrated":         report.Migrated,
		"skipped":          report.Skipped,
		"failed":           report.Failed,
		"dry_run":          req.DryRun,
		"duration_seconds": report.Duration.Seconds(),
	})
}
