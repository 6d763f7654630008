// Package sportsonline parses the prog.txt programme: weekday headers followed
// by "HH:MM Team1 x Team2 | channel-url" lines, one line per channel.
package sportsonline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

const (
	// DefaultURL is the programme file
	DefaultURL = "https://sportsonline.sn/prog.txt"

	// SourceZone is the zone programme times are published in
	SourceZone = "Europe/London"

	defaultDuration = "3.5"
)

var (
	eventPattern = regexp.MustCompile(`^(\d{2}:\d{2})\s+(.+?)(?:\s+x\s+(.+?))?\s+\|\s+(https?://\S+/channels/(?:hd|pt|bra)/([^/\s]+)\.php)$`)

	weekdays = map[string]int{
		"MONDAY": 0, "TUESDAY": 1, "WEDNESDAY": 2, "THURSDAY": 3,
		"FRIDAY": 4, "SATURDAY": 5, "SUNDAY": 6,
	}

	noisePrefixes = []string{"====", "*", "HD", "BR"}
	noiseMarkers  = []string{"UPDATE", "INFO:", "IMPORTANT:", "CHANNELS"}
)

// Adapter fetches and parses the programme
type Adapter struct {
	url     string
	client  *http.Client
	from    *time.Location
	to      *time.Location
	encoder ingest.StreamEncoder
	now     func() time.Time
	logger  *logrus.Logger
}

// New creates the adapter; local is the zone kickoff times are converted into
func New(url string, client *http.Client, local *time.Location, encoder ingest.StreamEncoder, logger *logrus.Logger) *Adapter {
	if url == "" {
		url = DefaultURL
	}
	if local == nil {
		local = time.UTC
	}
	return &Adapter{
		url:     url,
		client:  client,
		from:    ingest.LoadZone(SourceZone, logger),
		to:      local,
		encoder: encoder,
		now:     time.Now,
		logger:  logger,
	}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return "sportsonline" }

// Fetch implements ingest.Adapter
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	body, _, err := httpclient.Get(ctx, a.client, a.url)
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}
	return a.Parse(programmeText(body)), nil
}

// programmeText prefers the content of a <pre> block and falls back to the raw body
func programmeText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if pre := doc.Find("pre").First(); pre.Length() > 0 {
			return pre.Text()
		}
	}
	return string(body)
}

// Parse turns programme text into records. Kickoff dates are left empty; the
// weekday header only anchors the zone conversion.
func (a *Adapter) Parse(text string) []schedule.MatchRecord {
	var (
		out       []schedule.MatchRecord
		day       = "THURSDAY"
		lastClock string
		lastTeams [2]string
	)
	base := a.now().In(a.from)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, ok := weekdays[line]; ok {
			day = line
			continue
		}
		if isNoise(line) {
			continue
		}

		m := eventPattern.FindStringSubmatch(line)
		if m == nil {
			a.logger.WithField("line", line).Debug("sportsonline: line skipped")
			continue
		}
		clock, team1, team2, channel := m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), m[5]

		if len(out) > 0 && clock == lastClock && lastTeams == [2]string{team1, team2} {
			prev := &out[len(out)-1]
			prev.Servers = append(prev.Servers, schedule.Server{
				URL:   a.encoder.Channel("ss", channel),
				Label: fmt.Sprintf("CH-%d", len(prev.Servers)+1),
			})
			continue
		}

		kickoff := a.localClock(dateForDay(day, base), clock)
		out = append(out, schedule.MatchRecord{
			ID:          strings.ReplaceAll(ingest.CompactID(team1, team2), ":", "-"),
			Team1:       schedule.Team{Name: team1},
			Team2:       schedule.Team{Name: team2},
			KickoffTime: kickoff,
			Duration:    defaultDuration,
			Servers: []schedule.Server{{
				URL:   a.encoder.Channel("ss", channel),
				Label: "CH-1",
			}},
		})
		lastClock = clock
		lastTeams = [2]string{team1, team2}
	}
	return out
}

func isNoise(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	for _, m := range noiseMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// localClock converts a source clock on date into the local zone, HH:MM only
func (a *Adapter) localClock(date time.Time, clock string) string {
	t, err := time.ParseInLocation("2006-01-02 15:04", date.Format("2006-01-02")+" "+clock, a.from)
	if err != nil {
		return clock
	}
	return t.In(a.to).Format("15:04")
}

// dateForDay maps a weekday header onto the date within three days of base
func dateForDay(day string, base time.Time) time.Time {
	target, ok := weekdays[day]
	if !ok {
		return base
	}
	current := (int(base.Weekday()) + 6) % 7
	delta := target - current
	switch {
	case delta < -3:
		delta += 7
	case delta > 3:
		delta -= 7
	}
	return base.AddDate(0, 0, delta)
}
