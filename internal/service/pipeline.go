// Package service assembles the reconciliation pipeline from configuration.
package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/enrich"
	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/ingest/sources"
	"github.com/fortuna/jadwal/internal/reconciliation"
)

// Options adjust a pipeline beyond what config carries
type Options struct {
	// LogoCache, when set, caches the logo index between runs
	LogoCache enrich.Cache
	// Sources overrides the adapter registry, for tests and custom kinds
	Sources *sources.Registry
	// DryRun disables every output file
	DryRun bool
}

// Pipeline is a configured batch ingester and what it owns
type Pipeline struct {
	Ingester *ingest.BatchIngester
	Plans    []ingest.Plan
	Engine   *reconciliation.Engine

	registry *sources.Registry
	logger   *logrus.Logger
}

// NewPipeline wires sources, engine, translator and logo directory from cfg
func NewPipeline(cfg *config.Config, opts Options, logger *logrus.Logger) (*Pipeline, error) {
	client := httpclient.NewHTTPClient(httpclient.Options{
		Timeout:   cfg.Ingest.Timeout,
		Proxy:     cfg.Ingest.Proxy,
		UserAgent: cfg.Ingest.UserAgent,
	}, logger)
	local := ingest.LoadZone(cfg.Ingest.LocalTimezone, logger)
	cache := ingest.NewRunCache()

	registry := opts.Sources
	if registry == nil {
		registry = sources.NewRegistry(sources.Deps{
			Client:  client,
			Local:   local,
			Encoder: ingest.StreamEncoder{Prefix: cfg.Ingest.PlayerPrefix},
			Cache:   cache,
		}, logger)
	}

	plans, err := registry.Build(cfg.Sources)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("building sources: %w", err)
	}

	engineCfg, err := sources.EngineConfig(cfg.Engine)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("engine config: %w", err)
	}
	engine := reconciliation.NewEngine(engineCfg, logger)

	var logos ingest.LogoSource
	if cfg.Logos.URL != "" {
		dir := enrich.NewDirectory(cfg.Logos.URL, client, logger)
		if opts.LogoCache != nil {
			dir = dir.WithCache(opts.LogoCache, cfg.Logos.CacheTTL)
		}
		logos = dir
	}

	outputs := ingest.Outputs{
		SchedulePath: cfg.Output.SchedulePath,
		EnrichedPath: cfg.Output.EnrichedPath,
		ReviewPath:   cfg.Output.ReviewPath,
	}
	if opts.DryRun {
		outputs = ingest.Outputs{}
	}

	ingester := ingest.NewBatchIngester(ingest.BatchOptions{
		Plans:      plans,
		Engine:     engine,
		Translator: reconciliation.LoadTranslator(cfg.Translate.Path, logger),
		Logos:      logos,
		Cache:      cache,
		Workers:    cfg.Ingest.Workers,
		Timeout:    cfg.Ingest.Timeout,
		Outputs:    outputs,
	}, logger)

	logger.WithFields(logrus.Fields{
		"sources":   len(plans),
		"threshold": engineCfg.Threshold,
		"lead":      engineCfg.Lead,
	}).Info("✓ Pipeline ready")

	return &Pipeline{
		Ingester: ingester,
		Plans:    plans,
		Engine:   engine,
		registry: registry,
		logger:   logger,
	}, nil
}

// Run performs one batch run
func (p *Pipeline) Run(ctx context.Context) (*ingest.RunReport, error) {
	return p.Ingester.Run(ctx)
}

// SourceNames lists the enabled sources in priority order
func (p *Pipeline) SourceNames() []string {
	names := make([]string, len(p.Plans))
	for i, plan := range p.Plans {
		names[i] = plan.Source.Name
	}
	return names
}

// Close releases adapter resources such as the headless browser
func (p *Pipeline) Close() {
	p.registry.Close()
}
