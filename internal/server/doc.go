// Package server implements the HTTP server using Echo framework.
//
// Routes: health/metrics/version (public), secrets CRUD plus reveal and
// rotate (bearer-token authenticated), bulk envelope migration.
// Handlers split by domain: handlers_secrets.go, handlers_migration.go,
// handlers_health.go.
package server
