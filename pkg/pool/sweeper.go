package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the pool's periodic maintenance: expiring lapsed leases
// and re-reading the active snapshot every minute, refreshing quota
// snapshots on a longer period, and deleting long-retired credentials on
// a daily schedule.
type Sweeper struct {
	manager *Manager
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool

	// SweepSchedule is the cron expression for the lease sweep and
	// cache refresh. Default: every minute.
	SweepSchedule string

	// CreditRefreshSchedule is the cron expression for refreshing quota
	// snapshots of all active credentials. Default: every 10 minutes.
	CreditRefreshSchedule string

	// CleanupSchedule is the cron expression for stale-credential
	// cleanup. Default: daily at 04:00.
	CleanupSchedule string
}

// NewSweeper creates a sweeper for the manager.
func NewSweeper(manager *Manager) *Sweeper {
	return &Sweeper{
		manager:               manager,
		cron:                  cron.New(),
		logger:                slog.Default().With("component", "pool.sweeper"),
		SweepSchedule:         "@every 1m",
		CreditRefreshSchedule: "@every 10m",
		CleanupSchedule:       "0 4 * * *",
	}
}

// Start schedules the maintenance jobs and begins running them.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	for field, spec := range map[string]string{
		"sweep":          s.SweepSchedule,
		"credit refresh": s.CreditRefreshSchedule,
		"cleanup":        s.CleanupSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", field, spec, err)
		}
	}

	if _, err := s.cron.AddFunc(s.SweepSchedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule lease sweep: %w", err)
	}

	if _, err := s.cron.AddFunc(s.CreditRefreshSchedule, func() {
		s.runCreditRefresh(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule credit refresh: %w", err)
	}

	if _, err := s.cron.AddFunc(s.CleanupSchedule, func() {
		s.runCleanup(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("pool sweeper started",
		"sweep_schedule", s.SweepSchedule,
		"credit_refresh_schedule", s.CreditRefreshSchedule,
		"cleanup_schedule", s.CleanupSchedule,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep expires lapsed leases and forces the active snapshot to
// re-read the store so allocation never works from a stale view.
func (s *Sweeper) runSweep(ctx context.Context) {
	if n := s.manager.ExpireLeases(); n > 0 {
		s.logger.Debug("lease sweep complete", "expired", n)
	}
	if err := s.manager.RefreshCache(ctx); err != nil {
		s.logger.Error("cache refresh failed", "error", err)
	}
}

// runCreditRefresh re-fetches quota snapshots for all active
// credentials so allocation stops offering drained ones before the
// upstream rejects them.
func (s *Sweeper) runCreditRefresh(ctx context.Context) {
	n, err := s.manager.RefreshAllQuotas(ctx)
	if err != nil {
		s.logger.Error("credit refresh failed", "refreshed", n, "error", err)
		return
	}
	s.logger.Debug("credit refresh complete", "refreshed", n)
}

func (s *Sweeper) runCleanup(ctx context.Context) {
	deleted, err := s.manager.CleanupStale(ctx)
	if err != nil {
		s.logger.Error("stale credential cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("stale credentials deleted", "count", deleted)
	}
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("pool sweeper stopped")
	}
}

// IsRunning reports whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
