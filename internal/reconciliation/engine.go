package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/schedule"
)

// DefaultThreshold is the acceptance score for a fuzzy merge
const DefaultThreshold = 0.65

// PlaceholderTeam replaces an empty team1 name
const PlaceholderTeam = "TBD"

// UnmatchedPolicy decides what happens to a record no canonical entry matches
type UnmatchedPolicy string

const (
	// UnmatchedAppend adds the record as a new fixture
	UnmatchedAppend UnmatchedPolicy = "append"

	// UnmatchedDiscard drops the record
	UnmatchedDiscard UnmatchedPolicy = "discard"

	// UnmatchedReview drops the record from the schedule but reports it for manual review
	UnmatchedReview UnmatchedPolicy = "review"
)

// ParseUnmatchedPolicy accepts the config spelling of a policy; empty means append
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch p := UnmatchedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UnmatchedAppend, nil
	case UnmatchedAppend, UnmatchedDiscard, UnmatchedReview:
		return p, nil
	}
	return "", fmt.Errorf("unknown unmatched policy %q", s)
}

// Source describes how one input list is reconciled
type Source struct {
	Name   string
	Family Family

	// Seed sources are appended untouched; the first batch is usually one
	Seed bool

	Unmatched UnmatchedPolicy

	// ForceMarker is an id prefix that bypasses matching and always appends
	ForceMarker string

	// Threshold overrides the engine threshold when > 0
	Threshold float64
}

// Batch is one source's candidate records
type Batch struct {
	Source  Source
	Records []schedule.MatchRecord
}

// Config tunes the engine
type Config struct {
	Threshold float64
	Lead      time.Duration
	Rules     map[Family]Rule
}

// DefaultConfig returns the stock threshold, lead and family rules
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Lead:      DefaultLead,
		Rules:     DefaultRules(),
	}
}

// ReviewItem is an unmatched record held back for manual curation
type ReviewItem struct {
	Source    string               `json:"source"`
	Record    schedule.MatchRecord `json:"record"`
	BestIndex int                  `json:"best_index"`
	BestScore float64              `json:"best_score"`
}

// SourceMetrics counts outcomes for one source
type SourceMetrics struct {
	Received     int `json:"received"`
	Seeded       int `json:"seeded"`
	Merged       int `json:"merged"`
	StrictMerged int `json:"strict_merged"`
	Appended     int `json:"appended"`
	Forced       int `json:"forced"`
	Discarded    int `json:"discarded"`
	Reviewed     int `json:"reviewed"`
}

// Metrics tracks reconciliation statistics for one run
type Metrics struct {
	SourceMetrics
	PerSource map[string]SourceMetrics `json:"per_source"`
}

func (m *Metrics) record(source string, apply func(*SourceMetrics)) {
	apply(&m.SourceMetrics)
	sm := m.PerSource[source]
	apply(&sm)
	m.PerSource[source] = sm
}

// Result is the outcome of one Reconcile call
type Result struct {
	Schedule []schedule.MatchRecord `json:"schedule"`
	Review   []ReviewItem           `json:"review"`
	Metrics  Metrics                `json:"metrics"`
}

// Engine reconciles prioritized source batches into one canonical schedule.
// It performs no I/O; each Reconcile call starts from an empty schedule.
type Engine struct {
	cfg    Config
	logger *logrus.Logger
}

// NewEngine creates a new reconciliation engine, filling unset config with defaults
func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	rules := DefaultRules()
	for fam, r := range cfg.Rules {
		r.Family = fam
		rules[fam] = r
	}
	cfg.Rules = rules
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the effective configuration
func (e *Engine) Config() Config { return e.cfg }

// run is the mutable state of one Reconcile call
type run struct {
	schedule []schedule.MatchRecord
	views    []view
	result   *Result
}

func (r *run) add(rec schedule.MatchRecord) {
	rec.Servers = DedupeServers(rec.Servers)
	r.schedule = append(r.schedule, rec)
	r.views = append(r.views, newView(rec))
}

// Reconcile folds batches, in priority order, into a canonical schedule
func (e *Engine) Reconcile(batches []Batch) *Result {
	st := &run{
		result: &Result{
			Review:  []ReviewItem{},
			Metrics: Metrics{PerSource: make(map[string]SourceMetrics)},
		},
	}

	for _, b := range batches {
		e.reconcileBatch(st, b)
	}

	ApplyLeadTime(st.schedule, e.cfg.Lead)
	if st.schedule == nil {
		st.schedule = []schedule.MatchRecord{}
	}
	st.result.Schedule = st.schedule

	m := st.result.Metrics
	e.logger.WithFields(logrus.Fields{
		"entries":   len(st.schedule),
		"seeded":    m.Seeded,
		"merged":    m.Merged,
		"strict":    m.StrictMerged,
		"appended":  m.Appended,
		"forced":    m.Forced,
		"discarded": m.Discarded,
		"reviewed":  m.Reviewed,
	}).Info("✅ Reconciliation complete")

	return st.result
}

func (e *Engine) reconcileBatch(st *run, b Batch) {
	src := b.Source
	log := e.logger.WithFields(logrus.Fields{"source": src.Name, "family": src.Family})
	st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Received += len(b.Records) })

	rule, ok := e.cfg.Rules[src.Family]
	if !ok && !src.Seed {
		log.Warn("⚠️  Unknown source family, falling back to full rule")
		rule = e.cfg.Rules[FamilyFull]
	}
	threshold := e.cfg.Threshold
	if src.Threshold > 0 {
		threshold = src.Threshold
	}

	for _, rec := range b.Records {
		rec = rec.Clone()
		if strings.TrimSpace(rec.Team1.Name) == "" {
			log.WithField("id", rec.ID).Warn("Record without team1, using placeholder")
			rec.Team1.Name = PlaceholderTeam
		}

		if src.Seed {
			st.add(rec)
			st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Seeded++ })
			continue
		}

		if src.ForceMarker != "" && hasMarker(rec.ID, src.ForceMarker) {
			st.add(rec)
			st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Forced++ })
			log.WithField("id", rec.ID).Info("Forced new entry")
			continue
		}

		e.place(st, log, src, rule, threshold, rec)
	}
}

func (e *Engine) place(st *run, log *logrus.Entry, src Source, rule Rule, threshold float64, rec schedule.MatchRecord) {
	in := newView(rec)
	nearest := Match{Index: -1}
	debug := e.logger.IsLevelEnabled(logrus.DebugLevel)

	match := rule.findMatch(st.views, in, threshold, func(idx int, score float64) {
		if score > nearest.Score || nearest.Index < 0 {
			nearest = Match{Index: idx, Score: score}
		}
		if debug {
			log.WithFields(logrus.Fields{
				"id":        rec.ID,
				"candidate": st.schedule[idx].ID,
				"score":     fmt.Sprintf("%.2f", score),
			}).Debug("Compared")
		}
	})

	if match.Found() {
		target := &st.schedule[match.Index]
		target.Servers = MergeServers(target.Servers, rec.Servers)
		st.result.Metrics.record(src.Name, func(m *SourceMetrics) {
			m.Merged++
			if match.Strict {
				m.StrictMerged++
			}
		})
		log.WithFields(logrus.Fields{
			"id":     rec.ID,
			"into":   target.ID,
			"score":  fmt.Sprintf("%.2f", match.Score),
			"strict": match.Strict,
		}).Info("Merged servers")
		return
	}

	switch src.Unmatched {
	case UnmatchedDiscard:
		st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Discarded++ })
		log.WithField("id", rec.ID).Info("Skipped (no match)")
	case UnmatchedReview:
		st.result.Review = append(st.result.Review, ReviewItem{
			Source:    src.Name,
			Record:    rec,
			BestIndex: nearest.Index,
			BestScore: nearest.Score,
		})
		st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Reviewed++ })
		log.WithFields(logrus.Fields{
			"id":         rec.ID,
			"best_score": fmt.Sprintf("%.2f", nearest.Score),
		}).Warn("⚠️  Unmatched record held for review")
	default:
		st.add(rec)
		st.result.Metrics.record(src.Name, func(m *SourceMetrics) { m.Appended++ })
		log.WithField("id", rec.ID).Info("Added new entry")
	}
}

func hasMarker(id, marker string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(id)), strings.ToLower(marker))
}
