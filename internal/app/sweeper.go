package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidelock/stashbox/internal/coordination"
	"github.com/tidelock/stashbox/internal/domain"
	"github.com/tidelock/stashbox/internal/metrics"
	"github.com/tidelock/stashbox/internal/platform/correlation"
	"golang.org/x/sync/singleflight"
)

const sweepTimeout = 5 * time.Minute

// Sweeper periodically migrates stale envelopes in the background, so that a
// key rotation converges without waiting for every secret to be rewritten.
// When a leader elector is set, only the elected instance sweeps; otherwise
// every instance does.
type Sweeper struct {
	app      domain.AppService
	leader   *coordination.LeaderElection
	clock    clockwork.Clock
	interval time.Duration
	batch    int

	group    singleflight.Group
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSweeper creates a migration sweeper. leader may be nil to sweep
// unconditionally (single-instance deployments, CLI use).
func NewSweeper(app domain.AppService, leader *coordination.LeaderElection, clock clockwork.Clock, interval time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		app:      app,
		leader:   leader,
		clock:    clock,
		interval: interval,
		batch:    batchSize,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine.
func (s *Sweeper) Start() {
	ticker := s.clock.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.Chan():
				s.Sweep(context.Background())
			case <-s.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
	slog.Info("Migration sweeper started", "interval", s.interval.String())
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	if s.leader != nil {
		if err := s.leader.ReleaseLease(ctx); err != nil {
			slog.Warn("Failed to release sweep leadership", "error", err)
		}
	}

	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

// Sweep runs one migration pass if this instance holds (or can take)
// leadership. Concurrent calls collapse into a single run.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx = correlation.WithID(ctx, correlation.NewID())

	if !s.ensureLeader(ctx) {
		return
	}

	_, _, _ = s.group.Do("sweep", func() (any, error) {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()

		start := s.clock.Now()
		report, err := s.app.MigrateEnvelopes(sweepCtx, domain.MigrationOptions{BatchSize: s.batch})
		if err != nil {
			slog.ErrorContext(ctx, "Migration sweep failed", "error", err)
			return nil, err
		}

		metrics.MigrationSweepsTotal.Inc()
		metrics.MigrationSweepDuration.Observe(s.clock.Since(start).Seconds())
		if report.Migrated > 0 || report.Failed > 0 {
			slog.InfoContext(ctx, "Migration sweep completed",
				"scanned", report.Scanned,
				"migrated", report.Migrated,
				"failed", report.Failed)
		}
		return report, nil
	})
}

func (s *Sweeper) ensureLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}

	if err := s.leader.RenewLease(ctx); err == nil {
		return true
	}

	acquired, err := s.leader.TryBecomeLeader(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Leader election failed", "error", err)
		return false
	}
	if acquired {
		slog.InfoContext(ctx, "Acquired migration sweep leadership")
	}
	return acquired
}
