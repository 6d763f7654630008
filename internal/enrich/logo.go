package enrich

import (
	"github.com/fortuna/jadwal/internal/reconciliation"
	"github.com/fortuna/jadwal/internal/schedule"
)

// LogoIndex maps a lookup key ("manchester-united") to a logo URL
type LogoIndex map[string]string

// Resolve returns the logo for a team name, if any
func (idx LogoIndex) Resolve(name string) (string, bool) {
	key := reconciliation.LookupKey(name)
	if key == "" {
		return "", false
	}
	url, ok := idx[key]
	return url, ok && url != ""
}

// Enrich returns copies of the entries whose two teams both resolve a logo.
// Entries with an empty team2 never qualify. The input is not modified.
func Enrich(records []schedule.MatchRecord, idx LogoIndex) []schedule.MatchRecord {
	out := make([]schedule.MatchRecord, 0, len(records))
	if len(idx) == 0 {
		return out
	}
	for _, r := range records {
		logo1, ok1 := idx.Resolve(r.Team1.Name)
		logo2, ok2 := idx.Resolve(r.Team2.Name)
		if !ok1 || !ok2 {
			continue
		}
		cpy := r.Clone()
		cpy.Team1.Logo = logo1
		cpy.Team2.Logo = logo2
		out = append(out, cpy)
	}
	return out
}
