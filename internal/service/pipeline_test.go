package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/schedule"
)

const seedJSON = `[
	{"id": "PremierLeague-Arsenal-Chelsea", "league": "Premier League",
	 "team1": {"name": "Arsenal"}, "team2": {"name": "Chelsea"},
	 "kickoff_date": "2025-03-15", "kickoff_time": "20:00", "duration": "3.5", "servers": []}
]`

const extraJSON = `[
	{"id": "x1", "league": "Premier League",
	 "team1": {"name": "Arsenal FC"}, "team2": {"name": "Chelsea FC"},
	 "kickoff_date": "2025-03-15", "kickoff_time": "20:00", "duration": "3.5",
	 "servers": [{"url": "https://stream/1", "label": "EN"}]}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	extra := filepath.Join(dir, "extra.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedJSON), 0o644))
	require.NoError(t, os.WriteFile(extra, []byte(extraJSON), 0o644))

	return &config.Config{
		Engine: config.EngineConfig{Threshold: 0.65, LeadMinutes: 10},
		Sources: []config.SourceConfig{
			{Name: "seed", Kind: "file", Family: "full", Seed: true, Path: seed},
			{Name: "extra", Kind: "file", Family: "full", Unmatched: "append", Path: extra},
		},
		Output: config.OutputConfig{
			SchedulePath: filepath.Join(dir, "sch", "schedule.json"),
			ReviewPath:   filepath.Join(dir, "sch", "review.json"),
		},
		Ingest: config.IngestConfig{Workers: 2, Timeout: 5 * time.Second},
	}
}

func TestPipeline_Run(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	p, err := NewPipeline(cfg, Options{}, logger)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"seed", "extra"}, p.SourceNames())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Schedule, 1)
	assert.Len(t, report.Schedule[0].Servers, 1)
	assert.Equal(t, "19:50", report.Schedule[0].MatchTime)
	assert.NotEmpty(t, report.LogoError)

	written, errs := schedule.ReadFile(cfg.Output.SchedulePath)
	require.Empty(t, errs)
	assert.Len(t, written, 1)
	assert.FileExists(t, cfg.Output.ReviewPath)
}

func TestPipeline_DryRunWritesNothing(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	p, err := NewPipeline(cfg, Options{DryRun: true}, logger)
	require.NoError(t, err)
	defer p.Close()

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Schedule, 1)
	assert.NoFileExists(t, cfg.Output.SchedulePath)
}

func TestNewPipeline_Errors(t *testing.T) {
	logger, _ := test.NewNullLogger()

	cfg := testConfig(t)
	cfg.Sources[1].Kind = "carrier-pigeon"
	_, err := NewPipeline(cfg, Options{}, logger)
	assert.ErrorContains(t, err, "carrier-pigeon")

	cfg = testConfig(t)
	cfg.Engine.Families = map[string]config.FamilyConfig{"nonsense": {}}
	_, err = NewPipeline(cfg, Options{}, logger)
	assert.ErrorContains(t, err, "engine config")
}
