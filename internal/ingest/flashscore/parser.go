package flashscore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

const (
	matchSelector = ".event__match--twoLine, .event__match--static"
	homeSelector  = ".event__homeParticipant"
	awaySelector  = ".event__awayParticipant"
	nameSelector  = "[class*='wcl-name']"
	timeSelector  = ".event__time"

	defaultDuration = "3.5"
)

// Window bounds which fixtures are kept: from the start of Today through Days later
type Window struct {
	Today time.Time
	Days  int
}

func (w Window) contains(d time.Time) bool {
	start := time.Date(w.Today.Year(), w.Today.Month(), w.Today.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, w.Days)
	return !d.Before(start) && !d.After(end)
}

// ParseFixtures extracts fixtures for league from a rendered fixtures page
func ParseFixtures(doc *goquery.Document, league string, win Window) []schedule.MatchRecord {
	var out []schedule.MatchRecord
	doc.Find(matchSelector).Each(func(_ int, s *goquery.Selection) {
		rec, ok := parseMatch(s, league, win)
		if ok {
			out = append(out, rec)
		}
	})
	return out
}

func parseMatch(s *goquery.Selection, league string, win Window) (schedule.MatchRecord, bool) {
	home := participant(s.Find(homeSelector).First())
	away := participant(s.Find(awaySelector).First())
	if home == "" || away == "" {
		return schedule.MatchRecord{}, false
	}

	date, clock, ok := parseEventTime(s.Find(timeSelector).First().Text(), win.Today)
	if !ok || !win.contains(date) {
		return schedule.MatchRecord{}, false
	}

	return schedule.MatchRecord{
		ID:          ingest.CompactID(league, home, away),
		League:      league,
		Team1:       schedule.Team{Name: home},
		Team2:       schedule.Team{Name: away},
		KickoffDate: date.Format("2006-01-02"),
		KickoffTime: clock,
		Duration:    defaultDuration,
		Servers:     []schedule.Server{},
	}, true
}

// participant prefers the dedicated name span, falling back to the element text
func participant(s *goquery.Selection) string {
	if name := strings.TrimSpace(s.Find(nameSelector).First().Text()); name != "" {
		return name
	}
	return strings.TrimSpace(s.Text())
}

// parseEventTime reads "14.03. 20:00" (an optional preview line may follow).
// Fixtures listed from August onward that fall in January to March belong to
// the following year.
func parseEventTime(text string, today time.Time) (time.Time, string, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return time.Time{}, "", false
	}

	dm := strings.Split(strings.TrimRight(fields[0], "."), ".")
	if len(dm) != 2 {
		return time.Time{}, "", false
	}
	day, err1 := strconv.Atoi(dm[0])
	month, err2 := strconv.Atoi(dm[1])
	if err1 != nil || err2 != nil {
		return time.Time{}, "", false
	}

	clock, err := time.Parse("15:04", fields[1])
	if err != nil {
		return time.Time{}, "", false
	}

	year := today.Year()
	if today.Month() >= time.August && month <= 3 {
		year++
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, "", false
	}
	return date, clock.Format("15:04"), true
}

// ParseHTML converts rendered HTML to a goquery Document
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
