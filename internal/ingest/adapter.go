package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/fortuna/jadwal/internal/schedule"
)

// ErrSourceUnavailable wraps every failure to obtain a source's records
var ErrSourceUnavailable = errors.New("source unavailable")

// Adapter produces one source's raw candidate records
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]schedule.MatchRecord, error)
}

// Unavailable wraps err as ErrSourceUnavailable for source name
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrSourceUnavailable, err)
}

// RunCache holds per-event results for the duration of one run
type RunCache struct {
	mu      sync.Mutex
	records map[string]schedule.MatchRecord
}

// NewRunCache creates an empty run cache
func NewRunCache() *RunCache {
	return &RunCache{records: make(map[string]schedule.MatchRecord)}
}

// Reset drops everything cached by the previous run
func (c *RunCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]schedule.MatchRecord)
}

// Get returns a cached record
func (c *RunCache) Get(id string) (schedule.MatchRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		return schedule.MatchRecord{}, false
	}
	return r.Clone(), true
}

// Remember stores rec under id unless present; it reports whether rec was stored
func (c *RunCache) Remember(id string, rec schedule.MatchRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; ok {
		return false
	}
	c.records[id] = rec.Clone()
	return true
}

// Len is the number of cached records
func (c *RunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// SourceResult is what one adapter produced in a run
type SourceResult struct {
	Name     string
	Records  []schedule.MatchRecord
	Err      error
	Duration time.Duration
}

// Budgeted is implemented by adapters that know how long a fetch needs
type Budgeted interface {
	Budget() time.Duration
}

// Collect runs the plans' adapters concurrently, at most workers at a time,
// and returns results in plan order. Each fetch gets its own deadline: the
// plan's Timeout, else fallback; zero means no deadline. A failing adapter
// contributes an empty list.
func Collect(ctx context.Context, plans []Plan, workers int, fallback time.Duration, logger *logrus.Logger) []SourceResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]SourceResult, len(plans))

	p := pool.New().WithMaxGoroutines(workers)
	for i, plan := range plans {
		p.Go(func() {
			a := plan.Adapter
			timeout := plan.Timeout
			if timeout <= 0 {
				timeout = fallback
			}
			fetchCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			records, err := a.Fetch(fetchCtx)
			res := SourceResult{Name: a.Name(), Records: records, Err: err, Duration: time.Since(start)}

			log := logger.WithFields(logrus.Fields{"source": a.Name(), "took": res.Duration.Round(time.Millisecond)})
			if err != nil {
				log.WithError(err).Warn("⚠️  Source failed, continuing without it")
				res.Records = []schedule.MatchRecord{}
			} else {
				if res.Records == nil {
					res.Records = []schedule.MatchRecord{}
				}
				log.WithField("records", len(res.Records)).Info("✓ Source fetched")
			}
			results[i] = res
		})
	}
	p.Wait()
	return results
}

// StreamEncoder wraps raw stream URLs behind the player page
type StreamEncoder struct {
	Prefix string
}

// DefaultPlayerPrefix is the player page that decodes wrapped stream URLs
const DefaultPlayerPrefix = "https://multi.govoet.my.id/"

// Iframe wraps raw as base64 behind the player's iframe parameter
func (e StreamEncoder) Iframe(raw string) string {
	return e.param("iframe", base64.StdEncoding.EncodeToString([]byte(raw)))
}

// HLS wraps a raw m3u8 URL as base64 behind the player's hls parameter
func (e StreamEncoder) HLS(raw string) string {
	return e.param("hls", base64.StdEncoding.EncodeToString([]byte(raw)))
}

// Channel links a numbered channel through the player, e.g. ?envivo=12
func (e StreamEncoder) Channel(param, channel string) string {
	return e.param(param, channel)
}

func (e StreamEncoder) param(key, value string) string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = DefaultPlayerPrefix
	}
	if !strings.Contains(prefix, "?") {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return prefix + "?" + key + "=" + value
	}
	return prefix + "&" + key + "=" + value
}

// CompactID builds a source id from parts with spaces removed, "Premier League-Arsenal"
func CompactID(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "-")
}

// LoadZone resolves an IANA zone name, falling back to UTC
func LoadZone(name string, logger *logrus.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.WithError(err).WithField("zone", name).Warn("⚠️  Unknown time zone, using UTC")
		return time.UTC
	}
	return loc
}
