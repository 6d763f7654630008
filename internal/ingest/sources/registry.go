// Package sources turns the configured source list into ingest plans.
package sources

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/ingest/file"
	"github.com/fortuna/jadwal/internal/ingest/flashscore"
	"github.com/fortuna/jadwal/internal/ingest/rereyano"
	"github.com/fortuna/jadwal/internal/ingest/socolive"
	"github.com/fortuna/jadwal/internal/ingest/sportsonline"
	"github.com/fortuna/jadwal/internal/ingest/streamcenter"
	"github.com/fortuna/jadwal/internal/reconciliation"
)

// Deps are shared by every adapter
type Deps struct {
	Client  *http.Client
	Local   *time.Location
	Encoder ingest.StreamEncoder
	Cache   *ingest.RunCache

	// Renderer is used by flashscore; a headless Chrome renderer is started when nil
	Renderer flashscore.Renderer
}

// Factory builds the adapter for one configured source
type Factory func(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error)

// Registry maps source kinds to factories
type Registry struct {
	deps      Deps
	logger    *logrus.Logger
	factories map[string]Factory
	chrome    *flashscore.ChromeRenderer
}

// NewRegistry creates a registry with every built-in kind
func NewRegistry(deps Deps, logger *logrus.Logger) *Registry {
	if deps.Local == nil {
		deps.Local = time.UTC
	}
	if deps.Cache == nil {
		deps.Cache = ingest.NewRunCache()
	}
	r := &Registry{deps: deps, logger: logger, factories: map[string]Factory{}}
	r.Register("file", newFile)
	r.Register("rereyano", newRereyano)
	r.Register("sportsonline", newSportsonline)
	r.Register("streamcenter", newStreamcenter)
	r.Register("flashscore", newFlashscore)
	r.Register("socolive", newSocolive)
	return r
}

// Register adds or replaces the factory for kind
func (r *Registry) Register(kind string, f Factory) {
	r.factories[strings.ToLower(kind)] = f
}

// Kinds lists the registered kinds
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}

// Build creates one plan per enabled source, keeping the configured order
func (r *Registry) Build(cfgs []config.SourceConfig) ([]ingest.Plan, error) {
	plans := make([]ingest.Plan, 0, len(cfgs))
	for _, sc := range cfgs {
		log := r.logger.WithFields(logrus.Fields{"source": sc.Name, "kind": sc.Kind})
		if !sc.IsEnabled() {
			log.Info("Source disabled, skipping")
			continue
		}

		src, err := SourceFor(sc)
		if err != nil {
			return nil, err
		}

		factory, ok := r.factories[strings.ToLower(sc.Kind)]
		if !ok {
			return nil, fmt.Errorf("source %q: no adapter for kind %q", sc.Name, sc.Kind)
		}

		local := r.deps.Local
		if sc.Timezone != "" {
			local = ingest.LoadZone(sc.Timezone, r.logger)
		}

		adapter, err := factory(r, sc, local)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		timeout := sc.Timeout
		if b, ok := adapter.(ingest.Budgeted); ok && timeout == 0 {
			timeout = b.Budget()
		}
		if adapter.Name() != sc.Name {
			adapter = renamed{Adapter: adapter, name: sc.Name}
		}

		plans = append(plans, ingest.Plan{Adapter: adapter, Source: src, Timeout: timeout})
		log.WithFields(logrus.Fields{"family": src.Family, "seed": src.Seed, "unmatched": src.Unmatched, "timeout": timeout}).Info("✓ Source registered")
	}
	return plans, nil
}

// Close stops the headless browser if one was started
func (r *Registry) Close() {
	if r.chrome != nil {
		r.chrome.Close()
		r.chrome = nil
	}
}

// SourceFor maps a configured source onto its reconciliation settings
func SourceFor(sc config.SourceConfig) (reconciliation.Source, error) {
	family := reconciliation.FamilyFull
	if sc.Family != "" {
		f, err := reconciliation.ParseFamily(sc.Family)
		if err != nil {
			return reconciliation.Source{}, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		family = f
	}
	policy, err := reconciliation.ParseUnmatchedPolicy(sc.Unmatched)
	if err != nil {
		return reconciliation.Source{}, fmt.Errorf("source %q: %w", sc.Name, err)
	}
	return reconciliation.Source{
		Name:        sc.Name,
		Family:      family,
		Seed:        sc.Seed,
		Unmatched:   policy,
		ForceMarker: sc.ForceMarker,
		Threshold:   sc.Threshold,
	}, nil
}

// EngineConfig maps the engine section onto reconciliation settings
func EngineConfig(c config.EngineConfig) (reconciliation.Config, error) {
	cfg := reconciliation.DefaultConfig()
	if c.Threshold > 0 {
		cfg.Threshold = c.Threshold
	}
	if c.LeadMinutes > 0 {
		cfg.Lead = time.Duration(c.LeadMinutes) * time.Minute
	}
	for name, fc := range c.Families {
		fam, err := reconciliation.ParseFamily(name)
		if err != nil {
			return reconciliation.Config{}, err
		}
		rule := cfg.Rules[fam]
		rule.Family = fam
		override(&rule.Weights.League, fc.League)
		override(&rule.Weights.Team, fc.Team)
		override(&rule.Weights.Date, fc.Date)
		override(&rule.Weights.Time, fc.Time)
		override(&rule.LeagueGate, fc.LeagueGate)

		w := rule.Weights
		if w.League+w.Team+w.Date+w.Time <= 0 {
			return reconciliation.Config{}, fmt.Errorf("family %q: weights sum to zero", name)
		}
		cfg.Rules[fam] = rule
	}
	return cfg, nil
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

type renamed struct {
	ingest.Adapter
	name string
}

func (r renamed) Name() string { return r.name }

func newFile(r *Registry, sc config.SourceConfig, _ *time.Location) (ingest.Adapter, error) {
	if sc.Path == "" {
		return nil, fmt.Errorf("file source needs a path")
	}
	return file.New(sc.Name, sc.Path, r.logger), nil
}

func newRereyano(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error) {
	return rereyano.New(sc.URL, r.deps.Client, local, r.deps.Encoder, r.logger), nil
}

func newSportsonline(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error) {
	return sportsonline.New(sc.URL, r.deps.Client, local, r.deps.Encoder, r.logger), nil
}

func newStreamcenter(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error) {
	return streamcenter.New(sc.URL, r.deps.Client, local, r.deps.Encoder, r.logger), nil
}

func newSocolive(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error) {
	return socolive.New(sc.URL, r.deps.Client, local, r.deps.Encoder, r.logger), nil
}

func newFlashscore(r *Registry, sc config.SourceConfig, local *time.Location) (ingest.Adapter, error) {
	renderer := r.deps.Renderer
	if renderer == nil {
		if r.chrome == nil {
			r.chrome = flashscore.NewChromeRenderer(local.String(), r.logger)
		}
		renderer = r.chrome
	}

	pages := make([]flashscore.Page, 0, len(sc.Pages))
	for _, p := range sc.Pages {
		pages = append(pages, flashscore.Page{URL: p.URL, League: p.League})
	}
	return flashscore.New(renderer, flashscore.Options{
		Pages:    pages,
		Days:     sc.Days,
		Parallel: sc.Parallel,
		Local:    local,
	}, r.deps.Cache, r.logger), nil
}
