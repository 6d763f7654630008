package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/reconciliation"
	"github.com/fortuna/jadwal/internal/schedule"
	"github.com/fortuna/jadwal/internal/store"
)

func sampleReport() *ingest.RunReport {
	start := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	return &ingest.RunReport{
		ID:         uuid.NewString(),
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
		Sources:    []ingest.SourceSummary{{Name: "event", Records: 1}},
		Schedule: []schedule.MatchRecord{{
			ID:      "PremierLeague-Arsenal-Chelsea",
			League:  "Premier League",
			Team1:   schedule.Team{Name: "Arsenal"},
			Team2:   schedule.Team{Name: "Chelsea"},
			Servers: []schedule.Server{},
		}},
		Review: []reconciliation.ReviewItem{{Source: "streamcenter", BestIndex: -1}},
	}
}

func TestToRow(t *testing.T) {
	report := sampleReport()
	row, err := ToRow(report)
	require.NoError(t, err)

	assert.Equal(t, report.ID, row.RunID)
	assert.Equal(t, 1, row.Fixtures)
	assert.Equal(t, 0, row.Enriched)
	assert.Equal(t, 1, row.Reviewed)
	assert.Nil(t, row.EnrichedSchedule)

	var summary ingest.RunSummary
	require.NoError(t, json.Unmarshal(row.Summary, &summary))
	assert.Equal(t, 1, summary.Fixtures)
	assert.Equal(t, "event", summary.Sources[0].Name)

	var records []schedule.MatchRecord
	require.NoError(t, json.Unmarshal(row.Schedule, &records))
	assert.Equal(t, "Arsenal", records[0].Team1.Name)
}

func TestToRow_EmptyListsStayArrays(t *testing.T) {
	row, err := ToRow(&ingest.RunReport{ID: "x", Enriched: []schedule.MatchRecord{}})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(row.Schedule))
	assert.JSONEq(t, `[]`, string(row.Review))
	assert.JSONEq(t, `[]`, string(row.EnrichedSchedule))
}

// The remaining tests need a live Postgres; set JADWAL_TEST_DSN to run them.
func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	dsn := os.Getenv("JADWAL_TEST_DSN")
	if dsn == "" {
		t.Skip("JADWAL_TEST_DSN not set")
	}
	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	db, err := store.NewDatabase(ctx, dsn, store.PoolConfig{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))
	return NewRunRepository(db)
}

func TestRunRepository_SaveAndRead(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	report := sampleReport()
	t.Cleanup(func() {
		repo.db.DB().ExecContext(ctx, "DELETE FROM schedule_runs WHERE run_id = $1", report.ID)
	})

	require.NoError(t, repo.Save(ctx, report))
	require.NoError(t, repo.Publish(ctx, report))

	got, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Fixtures)
	assert.Nil(t, got.EnrichedSchedule)

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
