package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository handles ledger operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one run
func (r *Repository) Record(ctx context.Context, run *RunRecord) error {
	stmt, err := r.db.GetPreparedStatement("insert_run")
	if err != nil {
		return err
	}

	defaulted, err := json.Marshal(run.DefaultedFields)
	if err != nil {
		return fmt.Errorf("failed to encode defaulted fields: %w", err)
	}

	var accuracy sql.NullFloat64
	if run.HoldoutAccuracy != nil {
		accuracy = sql.NullFloat64{Float64: *run.HoldoutAccuracy, Valid: true}
	}

	_, err = stmt.ExecContext(ctx,
		run.ID, run.CreatedAt.UnixMilli(), run.Rows,
		run.LowCount, run.MediumCount, run.HighCount,
		run.AvgFlightRisk, run.ModelKind, string(defaulted),
		int64(run.Seed), accuracy, run.Plan,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first
func (r *Repository) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return []RunRecord{}, nil
	}

	stmt, err := r.db.GetPreparedStatement("recent_runs")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			run       RunRecord
			createdAt int64
			seed      int64
			defaulted string
			accuracy  sql.NullFloat64
		)
		if err := rows.Scan(
			&run.ID, &createdAt, &run.Rows,
			&run.LowCount, &run.MediumCount, &run.HighCount,
			&run.AvgFlightRisk, &run.ModelKind, &defaulted,
			&seed, &accuracy, &run.Plan,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		run.Seed = uint64(seed)
		if err := json.Unmarshal([]byte(defaulted), &run.DefaultedFields); err != nil {
			return nil, fmt.Errorf("failed to decode defaulted fields for run %s: %w", run.ID, err)
		}
		if accuracy.Valid {
			v := accuracy.Float64
			run.HoldoutAccuracy = &v
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Prune deletes runs created before cutoff and reports how many were removed
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, err := r.db.GetPreparedStatement("prune_runs")
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	return res.RowsAffected()
}

// Count returns the number of stored runs
func (r *Repository) Count(ctx context.Context) (int, error) {
	stmt, err := r.db.GetPreparedStatement("count_runs")
	if err != nil {
		return 0, err
	}

	var n int
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
