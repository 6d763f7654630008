package schedule

import "strings"

// Live is the kickoff sentinel used by always-on streams without a schedule
const Live = "live"

// Server is one playable stream endpoint attached to a match
type Server struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Team is one participant of a match
type Team struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// MatchRecord is the canonical per-match entity shared by every source
type MatchRecord struct {
	ID          string   `json:"id"`
	League      string   `json:"league"`
	Team1       Team     `json:"team1"`
	Team2       Team     `json:"team2"`
	KickoffDate string   `json:"kickoff_date"`
	KickoffTime string   `json:"kickoff_time"`
	MatchDate   string   `json:"match_date"`
	MatchTime   string   `json:"match_time"`
	Duration    string   `json:"duration"`
	Servers     []Server `json:"servers"`
}

// Clone returns a deep copy so callers can mutate servers without aliasing
func (m MatchRecord) Clone() MatchRecord {
	cpy := m
	cpy.Servers = make([]Server, len(m.Servers))
	copy(cpy.Servers, m.Servers)
	return cpy
}

// IsLive reports whether the kickoff carries the live sentinel
func (m MatchRecord) IsLive() bool {
	return strings.EqualFold(m.KickoffDate, Live) || strings.EqualFold(m.KickoffTime, Live)
}

// CloneAll deep-copies a slice of records
func CloneAll(records []MatchRecord) []MatchRecord {
	out := make([]MatchRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
