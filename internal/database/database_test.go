package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24bbnb21-oss/StaySmartAI/internal/analysis"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func sampleResult() *analysis.Result {
	acc := 0.925
	return &analysis.Result{
		Defaulted: []string{"distance_from_home"},
		Model: analysis.ModelReport{
			Kind:            analysis.ModelRandomForest,
			Seed:            42,
			HoldoutAccuracy: &acc,
		},
		Summary: analysis.Summary{
			TotalEmployees:    10,
			HighRiskCount:     2,
			AverageFlightRisk: 41.5,
			Distribution: map[analysis.Category]int{
				analysis.CategoryLow:    5,
				analysis.CategoryMedium: 3,
				analysis.CategoryHigh:   2,
			},
		},
	}
}

func TestNewRunRecord(t *testing.T) {
	run := NewRunRecord(sampleResult(), "pro")

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 10, run.Rows)
	assert.Equal(t, 5, run.LowCount)
	assert.Equal(t, 3, run.MediumCount)
	assert.Equal(t, 2, run.HighCount)
	assert.Equal(t, 41.5, run.AvgFlightRisk)
	assert.Equal(t, analysis.ModelRandomForest, run.ModelKind)
	assert.Equal(t, []string{"distance_from_home"}, run.DefaultedFields)
	assert.Equal(t, uint64(42), run.Seed)
	require.NotNil(t, run.HoldoutAccuracy)
	assert.Equal(t, 0.925, *run.HoldoutAccuracy)
	assert.Equal(t, "pro", run.Plan)
	assert.Equal(t, time.UTC, run.CreatedAt.Location())

	empty := NewRunRecord(&analysis.Result{NoData: true, Model: analysis.ModelReport{Kind: analysis.ModelNone}}, "")
	assert.Equal(t, []string{}, empty.DefaultedFields)
	assert.Nil(t, empty.HoldoutAccuracy)
}

func TestRepository_RecordAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := NewRunRecord(sampleResult(), "free")
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		run.Seed = uint64(i)
		require.NoError(t, repo.Record(ctx, run))
	}

	fallback := NewRunRecord(&analysis.Result{Model: analysis.ModelReport{Kind: analysis.ModelFallback, Seed: ^uint64(0)}}, "")
	fallback.CreatedAt = base.Add(-time.Hour)
	require.NoError(t, repo.Record(ctx, fallback))

	runs, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, uint64(2), runs[0].Seed)
	assert.Equal(t, uint64(1), runs[1].Seed)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, []string{"distance_from_home"}, runs[0].DefaultedFields)
	require.NotNil(t, runs[0].HoldoutAccuracy)
	assert.InDelta(t, 0.925, *runs[0].HoldoutAccuracy, 1e-12)

	all, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	last := all[3]
	assert.Equal(t, analysis.ModelFallback, last.ModelKind)
	assert.Nil(t, last.HoldoutAccuracy)
	assert.Equal(t, ^uint64(0), last.Seed)
	assert.Empty(t, last.DefaultedFields)

	none, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_DuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := NewRunRecord(sampleResult(), "")
	require.NoError(t, repo.Record(ctx, run))
	assert.Error(t, repo.Record(ctx, run))
}

func TestLedgerService_PruneExpired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{time.Hour, 89 * 24 * time.Hour, 91 * 24 * time.Hour, 400 * 24 * time.Hour} {
		run := NewRunRecord(sampleResult(), "")
		run.CreatedAt = now.Add(-age)
		require.NoError(t, repo.Record(ctx, run))
	}

	svc := NewLedgerService(repo, 90)
	svc.now = func() time.Time { return now }

	n, err := svc.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	keepForever := NewLedgerService(repo, 0)
	n, err = keepForever.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedgerService_RecordResultAndRecentCap(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLedgerService(repo, 90)
	ctx := context.Background()

	run, err := svc.RecordResult(ctx, sampleResult(), "enterprise")
	require.NoError(t, err)

	runs, err := svc.Recent(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "enterprise", runs[0].Plan)
}

func TestLedgerService_Scheduler(t *testing.T) {
	svc := NewLedgerService(newTestRepo(t), 90)

	assert.Error(t, svc.StartScheduler("not a schedule"))
	assert.True(t, svc.NextPrune().IsZero())

	require.NoError(t, svc.StartScheduler("0 3 * * *"))
	defer svc.StopScheduler()

	assert.Error(t, svc.StartScheduler("0 3 * * *"), "second start must fail")

	next := svc.NextPrune()
	assert.False(t, next.IsZero())
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())

	svc.StopScheduler()
	assert.True(t, svc.NextPrune().IsZero())
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(fmt.Errorf("failed to record run: %w", sqlite3.Error{Code: sqlite3.ErrBusy})))
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isBusy(errors.New("disk full")))
}
