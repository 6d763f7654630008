// Package flashscore renders league fixture pages in headless Chrome and
// turns them into the primary schedule.
package flashscore

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

// Page is one league fixtures page
type Page struct {
	URL    string `mapstructure:"url"`
	League string `mapstructure:"league"`
}

// DefaultPages are the league pages scraped when none are configured
var DefaultPages = []Page{
	{URL: "https://www.flashscore.com/football/england/premier-league/fixtures/", League: "Premier League"},
	{URL: "https://www.flashscore.com/football/england/championship/fixtures/", League: "Championship"},
}

// Adapter renders every configured page and parses its fixtures
type Adapter struct {
	renderer Renderer
	pages    []Page
	days     int
	parallel int
	local    *time.Location
	cache    *ingest.RunCache
	now      func() time.Time
	logger   *logrus.Logger
}

// Options configures the adapter
type Options struct {
	Pages    []Page
	Days     int
	Parallel int
	Local    *time.Location
}

// New creates the adapter. Fixtures seen on several pages are kept once via cache.
func New(renderer Renderer, opts Options, cache *ingest.RunCache, logger *logrus.Logger) *Adapter {
	if len(opts.Pages) == 0 {
		opts.Pages = DefaultPages
	}
	if opts.Days <= 0 {
		opts.Days = 3
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	if opts.Local == nil {
		opts.Local = time.UTC
	}
	if cache == nil {
		cache = ingest.NewRunCache()
	}
	return &Adapter{
		renderer: renderer,
		pages:    opts.Pages,
		days:     opts.Days,
		parallel: opts.Parallel,
		local:    opts.Local,
		cache:    cache,
		now:      time.Now,
		logger:   logger,
	}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return "flashscore" }

// Budget implements ingest.Budgeted: pages render parallel at a time, each
// within PageBudget
func (a *Adapter) Budget() time.Duration {
	rounds := (len(a.pages) + a.parallel - 1) / a.parallel
	return time.Duration(rounds) * PageBudget
}

// Fetch implements ingest.Adapter. A page that fails to render is skipped;
// the source is unavailable only when every page fails.
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	win := Window{Today: a.now().In(a.local), Days: a.days}
	perPage := make([][]schedule.MatchRecord, len(a.pages))
	errs := make([]error, len(a.pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	for i, page := range a.pages {
		g.Go(func() error {
			log := a.logger.WithFields(logrus.Fields{"league": page.League, "url": page.URL})
			html, err := a.renderer.Render(gctx, page.URL)
			if err != nil {
				log.WithError(err).Warn("⚠️  flashscore: page failed")
				errs[i] = err
				return nil
			}
			doc, err := ParseHTML(html)
			if err != nil {
				errs[i] = err
				return nil
			}
			perPage[i] = ParseFixtures(doc, page.League, win)
			log.WithField("fixtures", len(perPage[i])).Debug("flashscore: page parsed")
			return nil
		})
	}
	g.Wait()

	var out []schedule.MatchRecord
	failed := 0
	for i, records := range perPage {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, rec := range records {
			if a.cache.Remember(rec.ID, rec) {
				out = append(out, rec)
			}
		}
	}
	if len(a.pages) > 0 && failed == len(a.pages) {
		return nil, ingest.Unavailable(a.Name(), errors.Join(errs...))
	}
	return out, nil
}
