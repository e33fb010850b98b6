package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tidelock/stashbox/internal/app"
	"github.com/tidelock/stashbox/internal/coordination"
	"github.com/tidelock/stashbox/internal/crypto"
	"github.com/tidelock/stashbox/internal/database"
	"github.com/tidelock/stashbox/internal/metrics"
	"github.com/tidelock/stashbox/internal/platform/config"
	"github.com/tidelock/stashbox/internal/platform/logging"
	"github.com/tidelock/stashbox/internal/platform/version"
	"github.com/tidelock/stashbox/internal/redis"
	"github.com/tidelock/stashbox/internal/server"
)

const sweepLeaderKey = "migration:leader"

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func runGracefulShutdown(srv *server.Server, sweeper *app.Sweeper, registryCancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if sweeper != nil {
			sweeper.Stop(shutdownCtx)
		}
		registryCancel()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "version", info.String(), "env", cfg.AppEnv, "port", cfg.Port)
	metrics.SetBuildInfo(info.Version, info.Commit, info.GoVersion)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	cryptoSvc, err := crypto.NewService(cfg.Keyring())
	if err != nil {
		slog.Error("Failed to create crypto service", "error", err)
		os.Exit(1)
	}

	secretRepo := database.NewSecretRepo(pool, cryptoSvc)
	limiter := redis.NewRevealRateLimiter(redisClient, clock, cfg.RevealRateLimit, cfg.RevealRateWindow)

	appSvc := app.NewService(secretRepo, cryptoSvc, limiter, clock)

	id := instanceID()
	registryCtx, registryCancel := context.WithCancel(context.Background())
	registry := coordination.NewInstanceRegistry(redisClient, id, 15*time.Second, info.Version)
	go registry.Start(registryCtx)

	var sweeper *app.Sweeper
	if cfg.MigrationSweepInterval > 0 {
		leader := coordination.NewLeaderElection(redisClient, id, sweepLeaderKey, 2*cfg.MigrationSweepInterval)
		sweeper = app.NewSweeper(appSvc, leader, clock, cfg.MigrationSweepInterval, cfg.MigrationBatchSize)
		sweeper.Start()
	}

	srv := server.NewServer(cfg, appSvc, pool, redisClient)

	done := runGracefulShutdown(srv, sweeper, registryCancel)

	slog.Info("Server starting", "port", cfg.Port, "version", info.Version)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
