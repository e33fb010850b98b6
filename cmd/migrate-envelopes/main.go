// Command migrate-envelopes re-encrypts every stored secret envelope under
// the current key version and canonical format. Run it after rotating keys to
// converge the whole table at once instead of waiting for the background
// sweep, or with --dry-run to see how much work a rotation would cause.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/tidelock/stashbox/internal/app"
	"github.com/tidelock/stashbox/internal/crypto"
	"github.com/tidelock/stashbox/internal/database"
	"github.com/tidelock/stashbox/internal/domain"
	"github.com/tidelock/stashbox/internal/platform/config"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		batchSize   = flag.Int("batch-size", 100, "Envelopes to load per page")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (don't write to the database)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *batchSize < 1 {
		log.Fatal("--batch-size must be at least 1")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	keyring, err := config.KeyringFromEnv()
	if err != nil {
		log.Fatalf("Failed to load encryption keys: %v", err)
	}
	cryptoSvc, err := crypto.NewService(keyring)
	if err != nil {
		log.Fatalf("Failed to create crypto service: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := database.NewSecretRepo(pool, cryptoSvc)
	svc := app.NewService(repo, cryptoSvc, nil, clockwork.NewRealClock())

	slog.Info("Starting envelope migration",
		"dry_run", *dryRun,
		"batch_size", *batchSize,
		"current_version", cryptoSvc.CurrentVersion())

	report, err := svc.MigrateEnvelopes(ctx, domain.MigrationOptions{
		BatchSize: *batchSize,
		DryRun:    *dryRun,
	})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	slog.Info("Migration complete",
		"scanned", report.Scanned,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration.String())
	if report.Failed > 0 {
		os.Exit(1)
	}
}
