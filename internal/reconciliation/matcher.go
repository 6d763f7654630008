package reconciliation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fortuna/jadwal/internal/schedule"
)

// Family groups sources that share a trust profile and scoring scheme
type Family string

const (
	// FamilyFull scores league, teams, date and time
	FamilyFull Family = "full"

	// FamilyLeague scores league and teams; the source has no usable kickoff
	FamilyLeague Family = "league"

	// FamilyTeamTime scores teams and time; the source has no league
	FamilyTeamTime Family = "team_time"
)

const (
	epochDate    = "1970-01-01"
	kickoffParse = "2006-01-02 15:04"

	fullCreditMinutes = 30.0
	zeroCreditMinutes = 120.0
)

// ParseFamily accepts the config spelling of a family
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyFull:
		return FamilyFull, nil
	case FamilyLeague, "league_only":
		return FamilyLeague, nil
	case FamilyTeamTime, "teamtime":
		return FamilyTeamTime, nil
	}
	return "", fmt.Errorf("unknown source family %q", s)
}

// Weights blends the per-field similarities into one score
type Weights struct {
	League float64 `mapstructure:"league"`
	Team   float64 `mapstructure:"team"`
	Date   float64 `mapstructure:"date"`
	Time   float64 `mapstructure:"time"`
}

// Rule is the scoring scheme of one family
type Rule struct {
	Family  Family
	Weights Weights

	// LeagueGate rejects candidates whose league similarity is below it (0 disables)
	LeagueGate float64
}

// DefaultRules returns the stock rule for every family
func DefaultRules() map[Family]Rule {
	return map[Family]Rule{
		FamilyFull: {
			Family:  FamilyFull,
			Weights: Weights{League: 0.2, Team: 0.6, Date: 0.1, Time: 0.1},
		},
		FamilyLeague: {
			Family:  FamilyLeague,
			Weights: Weights{League: 0.3, Team: 0.7},
		},
		FamilyTeamTime: {
			Family:  FamilyTeamTime,
			Weights: Weights{Team: 0.6, Time: 0.4},
		},
	}
}

// view is the normalized projection of a record used for scoring
type view struct {
	league string
	team1  string
	team2  string
	date   string
	time   string
}

func newView(r schedule.MatchRecord) view {
	return view{
		league: Normalize(r.League),
		team1:  Normalize(r.Team1.Name),
		team2:  Normalize(r.Team2.Name),
		date:   strings.TrimSpace(r.KickoffDate),
		time:   strings.TrimSpace(r.KickoffTime),
	}
}

// MinutesApart returns the absolute kickoff distance in minutes, +Inf when
// either side cannot be parsed.
func MinutesApart(date1, time1, date2, time2 string) float64 {
	t1, err := time.Parse(kickoffParse, date1+" "+time1)
	if err != nil {
		return math.Inf(1)
	}
	t2, err := time.Parse(kickoffParse, date2+" "+time2)
	if err != nil {
		return math.Inf(1)
	}
	return math.Abs(t1.Sub(t2).Minutes())
}

// TimeScore is full credit within 30 minutes, decaying linearly to 0 at 120
func TimeScore(minutes float64) float64 {
	if math.IsNaN(minutes) || math.IsInf(minutes, 1) {
		return 0
	}
	if minutes <= fullCreditMinutes {
		return 1
	}
	return math.Max(0, 1-minutes/zeroCreditMinutes)
}

// Score rates how likely incoming describes the same match as canon
func (r Rule) Score(incoming, canon schedule.MatchRecord) float64 {
	return r.score(newView(incoming), newView(canon))
}

func (r Rule) score(in, c view) float64 {
	total := 0.0
	if r.Family != FamilyTeamTime {
		league := Similarity(in.league, c.league)
		if r.LeagueGate > 0 && league < r.LeagueGate {
			return 0
		}
		total += r.Weights.League * league
	}

	total += r.Weights.Team * TeamPairScore(in.team1, in.team2, c.team1, c.team2)

	switch r.Family {
	case FamilyFull:
		if in.date == c.date {
			total += r.Weights.Date
		}
		total += r.Weights.Time * TimeScore(MinutesApart(in.date, in.time, c.date, c.time))
	case FamilyTeamTime:
		date := in.date
		if date == "" {
			date = epochDate
		}
		total += r.Weights.Time * TimeScore(MinutesApart(date, in.time, c.date, c.time))
	}
	return total
}

// StrictMatch is the exact-equality fallback of the family
func (r Rule) StrictMatch(incoming, canon schedule.MatchRecord) bool {
	return r.strict(newView(incoming), newView(canon))
}

func (r Rule) strict(in, c view) bool {
	sameTeams := (in.team1 == c.team1 && in.team2 == c.team2) ||
		(in.team1 == c.team2 && in.team2 == c.team1)
	if !sameTeams {
		return false
	}

	switch r.Family {
	case FamilyFull:
		return in.league == c.league && in.date == c.date && in.time == c.time
	case FamilyLeague:
		return in.league == c.league
	case FamilyTeamTime:
		return in.time == c.time
	}
	return false
}

// Match is the outcome of FindMatch
type Match struct {
	Index  int
	Score  float64
	Strict bool
}

// Found reports whether a canonical entry was selected
func (m Match) Found() bool { return m.Index >= 0 }

// FindMatch selects the best canonical entry at or above threshold, lower
// index winning ties, and falls back to the strict matcher otherwise.
func (r Rule) FindMatch(canon []schedule.MatchRecord, rec schedule.MatchRecord, threshold float64) Match {
	views := make([]view, len(canon))
	for i := range canon {
		views[i] = newView(canon[i])
	}
	return r.findMatch(views, newView(rec), threshold, nil)
}

// scoreFunc receives every computed candidate score, used for debug logging
type scoreFunc func(idx int, score float64)

func (r Rule) findMatch(canon []view, in view, threshold float64, observe scoreFunc) Match {
	best := Match{Index: -1, Score: -1}
	for i, c := range canon {
		s := r.score(in, c)
		if observe != nil {
			observe(i, s)
		}
		if s >= threshold && s > best.Score {
			best = Match{Index: i, Score: s}
		}
	}
	if best.Found() {
		return best
	}

	for i, c := range canon {
		if r.strict(in, c) {
			return Match{Index: i, Score: r.score(in, c), Strict: true}
		}
	}
	return Match{Index: -1}
}
