package reconciliation

import (
	"strings"
	"time"

	"github.com/fortuna/jadwal/internal/schedule"
)

// DefaultLead is the gap between kickoff and the recommended tune-in time
const DefaultLead = 10 * time.Minute

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// TuneIn derives match_date/match_time from a kickoff.
// The live sentinel is mirrored. A valid time without a date shifts only the
// clock. Anything unparseable is mirrored verbatim.
func TuneIn(kickoffDate, kickoffTime string, lead time.Duration) (string, string) {
	if strings.EqualFold(kickoffDate, schedule.Live) || strings.EqualFold(kickoffTime, schedule.Live) {
		return kickoffDate, kickoffTime
	}

	d := strings.TrimSpace(kickoffDate)
	t := strings.TrimSpace(kickoffTime)

	if d == "" {
		clock, err := time.Parse(clockLayout, t)
		if err != nil {
			return kickoffDate, kickoffTime
		}
		return "", clock.Add(-lead).Format(clockLayout)
	}

	kickoff, err := time.Parse(kickoffParse, d+" "+t)
	if err != nil {
		return kickoffDate, kickoffTime
	}
	tuneIn := kickoff.Add(-lead)
	return tuneIn.Format(dateLayout), tuneIn.Format(clockLayout)
}

// ApplyLeadTime rewrites match_date/match_time on every record in place
func ApplyLeadTime(records []schedule.MatchRecord, lead time.Duration) {
	for i := range records {
		records[i].MatchDate, records[i].MatchTime = TuneIn(records[i].KickoffDate, records[i].KickoffTime, lead)
	}
}
