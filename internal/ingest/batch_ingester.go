package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/enrich"
	"github.com/fortuna/jadwal/internal/reconciliation"
	"github.com/fortuna/jadwal/internal/schedule"
)

// Plan pairs an adapter with how its records are reconciled
type Plan struct {
	Adapter Adapter
	Source  reconciliation.Source

	// Timeout bounds this source's fetch; zero uses BatchOptions.Timeout
	Timeout time.Duration
}

// LogoSource provides the logo index for the enrichment pass
type LogoSource interface {
	Fetch(ctx context.Context) (enrich.LogoIndex, error)
}

// Sink receives every finished run (run history, stream, websocket clients)
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *RunReport) error
}

// Outputs names the files a run writes; an empty path skips that file
type Outputs struct {
	SchedulePath string
	EnrichedPath string
	ReviewPath   string
}

// SourceSummary is one source's contribution to a run
type SourceSummary struct {
	Name     string        `json:"name"`
	Records  int           `json:"records"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunReport describes one completed batch run
type RunReport struct {
	ID         string                      `json:"id"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Sources    []SourceSummary             `json:"sources"`
	Metrics    reconciliation.Metrics      `json:"metrics"`
	Schedule   []schedule.MatchRecord      `json:"schedule"`
	Enriched   []schedule.MatchRecord      `json:"enriched"`
	Review     []reconciliation.ReviewItem `json:"review"`

	// LogoError is set when enrichment was skipped
	LogoError string `json:"logo_error,omitempty"`
}

// Summary is the report without the record lists
func (r *RunReport) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Sources:    r.Sources,
		Fixtures:   len(r.Schedule),
		Enriched:   len(r.Enriched),
		Reviewed:   len(r.Review),
		Metrics:    r.Metrics,
	}
}

// RunSummary is the compact form pushed to subscribers and stored as history
type RunSummary struct {
	ID         string                 `json:"id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Sources    []SourceSummary        `json:"sources"`
	Fixtures   int                    `json:"fixtures"`
	Enriched   int                    `json:"enriched"`
	Reviewed   int                    `json:"reviewed"`
	Metrics    reconciliation.Metrics `json:"metrics"`
}

// BatchOptions wires a BatchIngester
type BatchOptions struct {
	Plans      []Plan
	Engine     *reconciliation.Engine
	Translator *reconciliation.Translator
	Logos      LogoSource
	Cache      *RunCache
	Workers    int
	Timeout    time.Duration // per-source fetch deadline when a plan sets none
	Outputs    Outputs
	Sinks      []Sink
}

// BatchIngester runs the whole pipeline: collect every source, translate,
// reconcile, enrich, write outputs and notify sinks.
type BatchIngester struct {
	opts   BatchOptions
	logger *logrus.Logger

	runMu sync.Mutex // one run at a time

	mu   sync.RWMutex
	last *RunReport
}

// NewBatchIngester creates a batch ingester
func NewBatchIngester(opts BatchOptions, logger *logrus.Logger) *BatchIngester {
	if opts.Engine == nil {
		opts.Engine = reconciliation.NewEngine(reconciliation.DefaultConfig(), logger)
	}
	if opts.Translator == nil {
		opts.Translator = reconciliation.NewTranslator(nil)
	}
	if opts.Cache == nil {
		opts.Cache = NewRunCache()
	}
	return &BatchIngester{opts: opts, logger: logger}
}

// AddSink registers a sink for subsequent runs
func (b *BatchIngester) AddSink(s Sink) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	b.opts.Sinks = append(b.opts.Sinks, s)
}

// Latest returns the last completed run, or nil before the first one
func (b *BatchIngester) Latest() *RunReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}

// Run performs one batch run. Source failures degrade to empty lists; only
// cancellation of ctx or failing to write the schedule output is an error.
// A cancelled run writes nothing and notifies no sink.
func (b *BatchIngester) Run(ctx context.Context) (*RunReport, error) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	report := &RunReport{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := b.logger.WithField("run_id", report.ID)
	log.WithField("sources", len(b.opts.Plans)).Info("Starting schedule run...")

	b.opts.Cache.Reset()

	results := b.collect(ctx)
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("⚠️  Run cancelled, keeping previous outputs")
		return nil, fmt.Errorf("run %s cancelled: %w", report.ID, err)
	}
	batches := make([]reconciliation.Batch, len(b.opts.Plans))
	for i, plan := range b.opts.Plans {
		res := results[i]
		summary := SourceSummary{Name: res.Name, Records: len(res.Records), Duration: res.Duration}
		if res.Err != nil {
			summary.Error = res.Err.Error()
		}
		report.Sources = append(report.Sources, summary)
		batches[i] = reconciliation.Batch{
			Source:  plan.Source,
			Records: b.opts.Translator.Apply(res.Records),
		}
	}

	result := b.opts.Engine.Reconcile(batches)
	report.Schedule = result.Schedule
	report.Review = result.Review
	report.Metrics = result.Metrics

	if b.opts.Logos != nil {
		idx, err := b.opts.Logos.Fetch(ctx)
		if err != nil {
			log.WithError(err).Warn("⚠️  Logo index unavailable, skipping enrichment")
			report.LogoError = err.Error()
		} else {
			report.Enriched = enrich.Enrich(report.Schedule, idx)
			log.WithFields(logrus.Fields{"fixtures": len(report.Schedule), "enriched": len(report.Enriched)}).Info("✓ Enrichment complete")
		}
	} else {
		report.LogoError = enrich.ErrNoLogoIndex.Error()
	}

	if err := b.write(report); err != nil {
		return nil, err
	}
	report.FinishedAt = time.Now().UTC()

	b.mu.Lock()
	b.last = report
	b.mu.Unlock()

	b.publish(ctx, log, report)

	log.WithFields(logrus.Fields{
		"fixtures": len(report.Schedule),
		"review":   len(report.Review),
		"took":     report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	}).Info("✓ Schedule run complete")
	return report, nil
}

func (b *BatchIngester) collect(ctx context.Context) []SourceResult {
	return Collect(ctx, b.opts.Plans, b.opts.Workers, b.opts.Timeout, b.logger)
}

// write stores the outputs. The enriched file is only replaced when
// enrichment ran, so a logo outage keeps the previous one.
func (b *BatchIngester) write(report *RunReport) error {
	out := b.opts.Outputs
	if out.SchedulePath != "" {
		if err := schedule.WriteFile(out.SchedulePath, report.Schedule); err != nil {
			return fmt.Errorf("writing schedule: %w", err)
		}
	}

	var errs []error
	if out.EnrichedPath != "" && report.Enriched != nil {
		if err := schedule.WriteFile(out.EnrichedPath, report.Enriched); err != nil {
			errs = append(errs, fmt.Errorf("writing enriched schedule: %w", err))
		}
	}
	if out.ReviewPath != "" {
		review := report.Review
		if review == nil {
			review = []reconciliation.ReviewItem{}
		}
		if err := schedule.WriteJSON(out.ReviewPath, review); err != nil {
			errs = append(errs, fmt.Errorf("writing review list: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		b.logger.WithError(err).Warn("⚠️  Secondary output failed")
	}
	return nil
}

func (b *BatchIngester) publish(ctx context.Context, log *logrus.Entry, report *RunReport) {
	for _, s := range b.opts.Sinks {
		if err := s.Publish(ctx, report); err != nil {
			log.WithError(err).WithField("sink", s.Name()).Warn("⚠️  Failed to publish run")
		}
	}
}
