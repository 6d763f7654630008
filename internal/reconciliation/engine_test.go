package reconciliation

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/schedule"
)

var (
	seedSource   = Source{Name: "flashscore", Family: FamilyFull, Seed: true}
	rereSource   = Source{Name: "rereyano", Family: FamilyFull, Unmatched: UnmatchedAppend}
	inplaySource = Source{Name: "inplaynet", Family: FamilyLeague, Unmatched: UnmatchedAppend}
	soSource     = Source{Name: "sportsonline", Family: FamilyTeamTime, Unmatched: UnmatchedDiscard}
	manualSource = Source{Name: "manual", Family: FamilyFull, Unmatched: UnmatchedAppend, ForceMarker: "test"}
)

func newTestEngine(t *testing.T) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewEngine(DefaultConfig(), logger), hook
}

func withServers(r schedule.MatchRecord, id string, servers ...schedule.Server) schedule.MatchRecord {
	r.ID = id
	r.Servers = servers
	return r
}

func arsenalChelsea() schedule.MatchRecord {
	return withServers(
		match("Premier League", "Arsenal", "Chelsea", "2025-03-01", "15:00"),
		"ars-che",
		schedule.Server{URL: "A", Label: "CH-1"},
	)
}

func TestReconcile_MergesSwappedTeamsWithinTimeWindow(t *testing.T) {
	engine, _ := newTestEngine(t)
	incoming := withServers(
		match("Premier League", "Chelsea", "Arsenal", "2025-03-01", "15:05"),
		"che-ars",
		schedule.Server{URL: "B", Label: "CH-2"},
	)

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
		{Source: rereSource, Records: []schedule.MatchRecord{incoming}},
	})

	require.Len(t, res.Schedule, 1)
	got := res.Schedule[0]
	assert.Equal(t, []schedule.Server{{URL: "A", Label: "CH-1"}, {URL: "B", Label: "CH-2"}}, got.Servers)
	assert.Equal(t, "ars-che", got.ID)
	assert.Equal(t, "Arsenal", got.Team1.Name)
	assert.Equal(t, "Chelsea", got.Team2.Name)
	assert.Equal(t, "Premier League", got.League)
	assert.Equal(t, "2025-03-01", got.MatchDate)
	assert.Equal(t, "14:50", got.MatchTime)

	assert.Equal(t, 1, res.Metrics.Seeded)
	assert.Equal(t, 1, res.Metrics.Merged)
	assert.Equal(t, 1, res.Metrics.PerSource["rereyano"].Merged)
}

func TestReconcile_AbbreviationMatches(t *testing.T) {
	engine, _ := newTestEngine(t)
	canon := withServers(match("La Liga", "FC Barcelona", "Real Madrid", "2025-04-12", "21:00"), "bar-rma", schedule.Server{URL: "A"})
	incoming := withServers(match("La Liga", "FC Barca", "Real Madrid", "2025-04-12", "21:00"), "x", schedule.Server{URL: "B"})

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{canon}},
		{Source: rereSource, Records: []schedule.MatchRecord{incoming}},
	})

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, "FC Barcelona", res.Schedule[0].Team1.Name)
	assert.Len(t, res.Schedule[0].Servers, 2)
}

func TestReconcile_ForceMarkerAlwaysAppends(t *testing.T) {
	engine, _ := newTestEngine(t)
	forced := withServers(arsenalChelsea(), "TEST-ars-che", schedule.Server{URL: "M"})

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
		{Source: manualSource, Records: []schedule.MatchRecord{forced}},
	})

	require.Len(t, res.Schedule, 2)
	assert.Equal(t, "TEST-ars-che", res.Schedule[1].ID)
	assert.Equal(t, []schedule.Server{{URL: "A", Label: "CH-1"}}, res.Schedule[0].Servers)
	assert.Equal(t, 1, res.Metrics.Forced)
	assert.Equal(t, 0, res.Metrics.Merged)
}

func TestReconcile_ManualWithoutMarkerMerges(t *testing.T) {
	engine, _ := newTestEngine(t)
	manual := withServers(arsenalChelsea(), "ars-che-manual", schedule.Server{URL: "M"})

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
		{Source: manualSource, Records: []schedule.MatchRecord{manual}},
	})

	require.Len(t, res.Schedule, 1)
	assert.Len(t, res.Schedule[0].Servers, 2)
}

func TestReconcile_UnmatchedPolicies(t *testing.T) {
	stranger := withServers(match("", "Persib", "Persija", "", "19:00"), "persib-persija", schedule.Server{URL: "P"})

	t.Run("append", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		src := soSource
		src.Unmatched = UnmatchedAppend
		res := engine.Reconcile([]Batch{
			{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
			{Source: src, Records: []schedule.MatchRecord{stranger}},
		})
		require.Len(t, res.Schedule, 2)
		assert.Equal(t, "persib-persija", res.Schedule[1].ID)
		assert.Equal(t, "18:50", res.Schedule[1].MatchTime)
		assert.Equal(t, 1, res.Metrics.Appended)
	})

	t.Run("discard", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		res := engine.Reconcile([]Batch{
			{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
			{Source: soSource, Records: []schedule.MatchRecord{stranger}},
		})
		assert.Len(t, res.Schedule, 1)
		assert.Empty(t, res.Review)
		assert.Equal(t, 1, res.Metrics.Discarded)
	})

	t.Run("review", func(t *testing.T) {
		engine, hook := newTestEngine(t)
		src := soSource
		src.Unmatched = UnmatchedReview
		res := engine.Reconcile([]Batch{
			{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
			{Source: src, Records: []schedule.MatchRecord{stranger}},
		})
		assert.Len(t, res.Schedule, 1)
		require.Len(t, res.Review, 1)
		assert.Equal(t, "sportsonline", res.Review[0].Source)
		assert.Equal(t, "persib-persija", res.Review[0].Record.ID)
		assert.Equal(t, 0, res.Review[0].BestIndex)
		assert.Equal(t, 1, res.Metrics.Reviewed)

		var warned bool
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["id"] == "persib-persija" {
				warned = true
			}
		}
		assert.True(t, warned)
	})
}

func TestReconcile_TeamTimeStrictFallback(t *testing.T) {
	engine, _ := newTestEngine(t)
	so := withServers(match("", "Chelsea", "Arsenal", "", "15:00"), "so-1", schedule.Server{URL: "S"})

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
		{Source: soSource, Records: []schedule.MatchRecord{so}},
	})

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, []string{"A", "S"}, urls(res.Schedule[0].Servers))
	assert.Equal(t, 1, res.Metrics.StrictMerged)
}

func TestReconcile_LaterRecordsMatchAppendedOnes(t *testing.T) {
	engine, _ := newTestEngine(t)
	first := withServers(match("Liga 1", "Persib", "Persija", "", ""), "a", schedule.Server{URL: "1"})
	second := withServers(match("Liga 1", "Persija", "Persib", "", ""), "b", schedule.Server{URL: "2"})

	res := engine.Reconcile([]Batch{
		{Source: inplaySource, Records: []schedule.MatchRecord{first, second}},
	})

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, []string{"1", "2"}, urls(res.Schedule[0].Servers))
}

func TestReconcile_IdempotentServerMerge(t *testing.T) {
	engine, _ := newTestEngine(t)
	incoming := withServers(arsenalChelsea(), "dup", schedule.Server{URL: "B"}, schedule.Server{URL: "A", Label: "other"})

	res := engine.Reconcile([]Batch{
		{Source: seedSource, Records: []schedule.MatchRecord{arsenalChelsea()}},
		{Source: rereSource, Records: []schedule.MatchRecord{incoming}},
		{Source: rereSource, Records: []schedule.MatchRecord{incoming}},
	})

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, []string{"A", "B"}, urls(res.Schedule[0].Servers))
}

func TestReconcile_TeamOrderInvariance(t *testing.T) {
	base := withServers(match("Serie A", "Inter", "AC Milan", "2025-02-02", "20:45"), "x", schedule.Server{URL: "X"})
	swapped := base
	swapped.Team1, swapped.Team2 = base.Team2, base.Team1

	for _, src := range []Source{rereSource, inplaySource, soSource} {
		engine, _ := newTestEngine(t)
		canon := []schedule.MatchRecord{
			arsenalChelsea(),
			withServers(match("Serie A", "Internazionale", "Milan", "2025-02-02", "20:45"), "int-mil", schedule.Server{URL: "C"}),
		}
		a := engine.Reconcile([]Batch{{Source: seedSource, Records: canon}, {Source: src, Records: []schedule.MatchRecord{base}}})
		b := engine.Reconcile([]Batch{{Source: seedSource, Records: canon}, {Source: src, Records: []schedule.MatchRecord{swapped}}})

		assert.Equal(t, a.Metrics.Merged, b.Metrics.Merged, src.Name)
		assert.Equal(t, len(a.Schedule), len(b.Schedule), src.Name)
		assert.Equal(t, urls(a.Schedule[1].Servers), urls(b.Schedule[1].Servers), src.Name)
	}
}

func TestReconcile_ThresholdMonotonic(t *testing.T) {
	seed := []schedule.MatchRecord{
		arsenalChelsea(),
		withServers(match("La Liga", "FC Barcelona", "Real Madrid", "2025-03-01", "21:00"), "bar", schedule.Server{URL: "1"}),
		withServers(match("Serie A", "Juventus", "Napoli", "2025-03-01", "18:00"), "juv", schedule.Server{URL: "2"}),
	}
	incoming := []schedule.MatchRecord{
		withServers(match("Premier League", "Arsenal FC", "Chelsea FC", "2025-03-01", "15:45"), "i1", schedule.Server{URL: "a"}),
		withServers(match("Liga", "Barca", "Real Madrid CF", "2025-03-01", "21:00"), "i2", schedule.Server{URL: "b"}),
		withServers(match("Italy Serie A", "Juve", "SSC Napoli", "2025-03-01", "19:30"), "i3", schedule.Server{URL: "c"}),
		withServers(match("Ligue 1", "PSG", "Lyon", "2025-03-01", "20:00"), "i4", schedule.Server{URL: "d"}),
	}

	prev := len(incoming) + 1
	for _, threshold := range []float64{0.3, 0.5, 0.65, 0.75, 0.85, 0.95, 1.0} {
		cfg := DefaultConfig()
		cfg.Threshold = threshold
		logger, _ := test.NewNullLogger()
		res := NewEngine(cfg, logger).Reconcile([]Batch{
			{Source: seedSource, Records: seed},
			{Source: Source{Name: "rere", Family: FamilyFull, Unmatched: UnmatchedDiscard}, Records: incoming},
		})
		assert.LessOrEqual(t, res.Metrics.Merged, prev, "threshold %.2f", threshold)
		prev = res.Metrics.Merged
	}
}

func TestReconcile_PlaceholderTeam(t *testing.T) {
	engine, _ := newTestEngine(t)
	res := engine.Reconcile([]Batch{{
		Source:  seedSource,
		Records: []schedule.MatchRecord{{ID: "f1", League: "F1", KickoffDate: schedule.Live, KickoffTime: schedule.Live}},
	}})

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, PlaceholderTeam, res.Schedule[0].Team1.Name)
	assert.Equal(t, schedule.Live, res.Schedule[0].MatchTime)
}

func TestReconcile_SeedDedupesOwnServers(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := withServers(arsenalChelsea(), "s", schedule.Server{URL: "A", Label: "1"}, schedule.Server{URL: "A", Label: "2"})

	res := engine.Reconcile([]Batch{{Source: seedSource, Records: []schedule.MatchRecord{rec}}})
	assert.Equal(t, []string{"A"}, urls(res.Schedule[0].Servers))
}

func TestReconcile_EmptyInputIsWellFormed(t *testing.T) {
	engine, _ := newTestEngine(t)
	res := engine.Reconcile(nil)
	assert.NotNil(t, res.Schedule)
	assert.Empty(t, res.Schedule)
	assert.NotNil(t, res.Review)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	engine, _ := newTestEngine(t)
	seed := []schedule.MatchRecord{arsenalChelsea()}
	incoming := []schedule.MatchRecord{withServers(arsenalChelsea(), "i", schedule.Server{URL: "B"})}

	engine.Reconcile([]Batch{{Source: seedSource, Records: seed}, {Source: rereSource, Records: incoming}})
	assert.Equal(t, []string{"A"}, urls(seed[0].Servers))
	assert.Empty(t, seed[0].MatchTime)
}

func TestNewEngine_FillsDefaults(t *testing.T) {
	engine := NewEngine(Config{Rules: map[Family]Rule{
		FamilyFull: {Weights: Weights{League: 0.1, Team: 0.5, Date: 0.2, Time: 0.2}},
	}}, nil)

	cfg := engine.Config()
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, DefaultLead, cfg.Lead)
	assert.Equal(t, FamilyFull, cfg.Rules[FamilyFull].Family)
	assert.Equal(t, 0.5, cfg.Rules[FamilyFull].Weights.Team)
	assert.Equal(t, DefaultRules()[FamilyTeamTime], cfg.Rules[FamilyTeamTime])
}

func TestParseUnmatchedPolicy(t *testing.T) {
	p, err := ParseUnmatchedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UnmatchedAppend, p)

	p, err = ParseUnmatchedPolicy("Review")
	require.NoError(t, err)
	assert.Equal(t, UnmatchedReview, p)

	_, err = ParseUnmatchedPolicy("ignore")
	assert.Error(t, err)
}

func urls(servers []schedule.Server) []string {
	out := make([]string, len(servers))
	for i, s := range servers {
		out[i] = s.URL
	}
	return out
}
