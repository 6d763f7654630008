package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/ingest"
)

// Runner performs one schedule run
type Runner interface {
	Run(ctx context.Context) (*ingest.RunReport, error)
}

// Orchestrator runs the pipeline on a fixed interval and on demand
type Orchestrator struct {
	runner Runner
	config *Config
	logger *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	runs   int
	fails  int
}

// Config holds scheduler configuration
type Config struct {
	Interval   time.Duration // Default: 15m
	RunOnStart bool          // Default: true
	MaxRetries int           // Default: 3
	RetryDelay time.Duration // Default: 30s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:   15 * time.Minute,
		RunOnStart: true,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
	}
}

// FromConfig maps the scheduler section of the application config
func FromConfig(sc config.SchedulerConfig) *Config {
	cfg := DefaultConfig()
	if sc.Interval > 0 {
		cfg.Interval = sc.Interval
	}
	cfg.RunOnStart = sc.RunOnStart
	if sc.MaxRetries > 0 {
		cfg.MaxRetries = sc.MaxRetries
	}
	if sc.RetryDelay > 0 {
		cfg.RetryDelay = sc.RetryDelay
	}
	return cfg
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(runner Runner, cfg *Config, logger *logrus.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Orchestrator{runner: runner, config: cfg, logger: logger}
}

// Start runs the schedule loop until ctx is cancelled or Stop is called
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("╔════════════════════════════════════════╗")
	o.logger.Info("║   Jadwal Scheduler Orchestrator       ║")
	o.logger.Info("╚════════════════════════════════════════╝")
	o.logger.WithFields(logrus.Fields{
		"interval":     o.config.Interval,
		"run_on_start": o.config.RunOnStart,
		"max_retries":  o.config.MaxRetries,
	}).Info("Scheduler configured")

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	if o.config.RunOnStart {
		o.runWithRetry(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("→ Scheduler stopped")
			return
		case <-ticker.C:
			o.runWithRetry(ctx)
		}
	}
}

// runWithRetry runs once, retrying failed runs up to MaxRetries times
func (o *Orchestrator) runWithRetry(ctx context.Context) {
	var err error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		_, err = o.runner.Run(ctx)
		if err == nil {
			o.record(nil)
			return
		}
		if ctx.Err() != nil {
			o.logger.WithError(err).Info("→ Run interrupted by shutdown")
			return
		}

		o.logger.WithError(err).Warnf("⚠️  Run attempt %d/%d failed", attempt, o.config.MaxRetries)

		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.config.RetryDelay):
			}
		}
	}

	o.record(err)
	o.logger.WithError(err).Errorf("❌ All %d run attempts failed", o.config.MaxRetries)
}

func (o *Orchestrator) record(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	if err != nil {
		o.fails++
	}
}

// TriggerRun runs the pipeline immediately, without retries
func (o *Orchestrator) TriggerRun(ctx context.Context) (*ingest.RunReport, error) {
	o.logger.Info("Manual run triggered")
	report, err := o.runner.Run(ctx)
	o.record(err)
	if err != nil {
		return nil, fmt.Errorf("manual run: %w", err)
	}
	return report, nil
}

// Stop gracefully stops the scheduler
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]interface{}{
		"interval":     o.config.Interval.String(),
		"run_on_start": o.config.RunOnStart,
		"max_retries":  o.config.MaxRetries,
		"runs":         o.runs,
		"failed_runs":  o.fails,
	}
}
