package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/reconciliation"
	"github.com/fortuna/jadwal/internal/schedule"
	"github.com/fortuna/jadwal/internal/store"
)

// ErrRunNotFound is returned when no run matches
var ErrRunNotFound = errors.New("run not found")

// RunRepository handles schedule run history
type RunRepository struct {
	db *store.Database
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *store.Database) *RunRepository {
	return &RunRepository{db: db}
}

// Name implements ingest.Sink
func (r *RunRepository) Name() string { return "postgres" }

// Publish implements ingest.Sink by saving the run
func (r *RunRepository) Publish(ctx context.Context, report *ingest.RunReport) error {
	return r.Save(ctx, report)
}

// Save inserts a finished run; saving the same run twice is a no-op
func (r *RunRepository) Save(ctx context.Context, report *ingest.RunReport) error {
	row, err := ToRow(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedule_runs (
			run_id, started_at, finished_at, fixtures, enriched, reviewed,
			summary, schedule, enriched_schedule, review
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO NOTHING
	`
	// jsonb parameters go as text; lib/pq sends []byte as bytea
	var enriched any
	if row.EnrichedSchedule != nil {
		enriched = string(row.EnrichedSchedule)
	}
	_, err = r.db.DB().ExecContext(ctx, query,
		row.RunID, row.StartedAt, row.FinishedAt, row.Fixtures, row.Enriched, row.Reviewed,
		string(row.Summary), string(row.Schedule), enriched, string(row.Review),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", row.RunID, err)
	}
	return nil
}

// Latest returns the most recent run with its schedules
func (r *RunRepository) Latest(ctx context.Context) (*store.ScheduleRun, error) {
	query := `
		SELECT run_id, started_at, finished_at, fixtures, enriched, reviewed,
			summary, schedule, enriched_schedule, review, created_at
		FROM schedule_runs
		ORDER BY started_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.DB().QueryRowContext(ctx, query))
}

// GetByID returns one run with its schedules
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*store.ScheduleRun, error) {
	query := `
		SELECT run_id, started_at, finished_at, fixtures, enriched, reviewed,
			summary, schedule, enriched_schedule, review, created_at
		FROM schedule_runs
		WHERE run_id = $1
	`
	return r.scanOne(r.db.DB().QueryRowContext(ctx, query, runID))
}

// List returns the newest runs without their schedules
func (r *RunRepository) List(ctx context.Context, limit int) ([]*store.ScheduleRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT run_id, started_at, finished_at, fixtures, enriched, reviewed, summary, created_at
		FROM schedule_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []*store.ScheduleRun{}
	for rows.Next() {
		run := &store.ScheduleRun{}
		var summary []byte
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Fixtures,
			&run.Enriched, &run.Reviewed, &summary, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Summary = summary
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) scanOne(row *sql.Row) (*store.ScheduleRun, error) {
	run := &store.ScheduleRun{}
	var summary, sched, enriched, review []byte
	err := row.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Fixtures, &run.Enriched,
		&run.Reviewed, &summary, &sched, &enriched, &review, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.Summary = summary
	run.Schedule = sched
	run.EnrichedSchedule = enriched
	run.Review = review
	return run, nil
}

// ToRow flattens a report into its stored form
func ToRow(report *ingest.RunReport) (*store.ScheduleRun, error) {
	summary, err := json.Marshal(report.Summary())
	if err != nil {
		return nil, fmt.Errorf("encoding run summary: %w", err)
	}

	sched := report.Schedule
	if sched == nil {
		sched = []schedule.MatchRecord{}
	}
	schedJSON, err := json.Marshal(sched)
	if err != nil {
		return nil, fmt.Errorf("encoding schedule: %w", err)
	}

	var enrichedJSON json.RawMessage
	if report.Enriched != nil {
		enrichedJSON, err = json.Marshal(report.Enriched)
		if err != nil {
			return nil, fmt.Errorf("encoding enriched schedule: %w", err)
		}
	}

	review := report.Review
	if review == nil {
		review = []reconciliation.ReviewItem{}
	}
	reviewJSON, err := json.Marshal(review)
	if err != nil {
		return nil, fmt.Errorf("encoding review: %w", err)
	}

	return &store.ScheduleRun{
		RunID:            report.ID,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
		Fixtures:         len(report.Schedule),
		Enriched:         len(report.Enriched),
		Reviewed:         len(report.Review),
		Summary:          summary,
		Schedule:         schedJSON,
		EnrichedSchedule: enrichedJSON,
		Review:           reviewJSON,
	}, nil
}
