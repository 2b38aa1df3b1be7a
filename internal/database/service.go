package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
	"github.com/24bbnb21-oss/StaySmartAI/internal/resilience"
)

// LedgerService records scoring runs and enforces retention
type LedgerService struct {
	repo      *Repository
	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	scheduler *cron.Cron
	entryID   cron.EntryID
}

// NewLedgerService creates a ledger keeping runs for retentionDays (0 keeps forever)
func NewLedgerService(repo *Repository, retentionDays int) *LedgerService {
	return &LedgerService{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// RecordResult stores the aggregates of res, retrying while another
// connection holds the write lock
func (s *LedgerService) RecordResult(ctx context.Context, res *analysis.Result, plan string) (*RunRecord, error) {
	run := NewRunRecord(res, plan)

	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableErrors = isBusy
	err := resilience.RetryWithConfig(ctx, cfg, func() error {
		return s.repo.Record(ctx, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// Recent returns the newest runs, capped at 100
func (s *LedgerService) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit > 100 {
		limit = 100
	}
	return s.repo.Recent(ctx, limit)
}

// PruneExpired removes runs older than the retention period
func (s *LedgerService) PruneExpired(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	n, err := s.repo.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Pruned expired runs", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// StartScheduler runs PruneExpired on the given cron schedule
func (s *LedgerService) StartScheduler(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("ledger scheduler already running")
	}

	scheduler := cron.New()
	entryID, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.PruneExpired(ctx); err != nil {
			slog.Error("Scheduled run prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	s.scheduler = scheduler
	s.entryID = entryID
	scheduler.Start()

	slog.Info("Ledger retention scheduler started", "schedule", schedule, "retention_days", int(s.retention.Hours()/24))
	return nil
}

// NextPrune reports when the scheduled prune will next run
func (s *LedgerService) NextPrune() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return time.Time{}
	}
	return s.scheduler.Entry(s.entryID).Next
}

// StopScheduler stops the prune job and waits for a running prune to finish
func (s *LedgerService) StopScheduler() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// Ping checks the ledger connection
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.repo.db.PingContext(ctx)
}

// PoolStats returns connection pool statistics of the ledger database
func (s *LedgerService) PoolStats() map[string]interface{} {
	return s.repo.db.GetPoolStats()
}
