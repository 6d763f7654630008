// Package rereyano scrapes the plain-text channel listing published inside a
// textarea on the rereyano page.
package rereyano

import (
	"bufio"
	"bytes"
	"context"
	"errors"
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
	// DefaultURL is the listing page
	DefaultURL = "https://rereyano.ru/"

	// SourceZone is the zone listing times are published in
	SourceZone = "Europe/Paris"

	defaultDuration = "3.5"
)

var (
	// 14-03-2025 (21:00) Premier League : Arsenal - Chelsea (CH12en) (CH40es)
	linePattern    = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4}) \((\d{1,2}:\d{2})\) (.+?) : (.+?)(?: - (.+?))?(?:\s*\(CH\d+\w+\)\s*)*$`)
	channelPattern = regexp.MustCompile(`\(CH(\d+)(\w+?)\)`)

	errNoListing = errors.New("no textarea listing on page")
)

// Adapter fetches and parses the rereyano listing
type Adapter struct {
	url     string
	client  *http.Client
	from    *time.Location
	to      *time.Location
	encoder ingest.StreamEncoder
	logger  *logrus.Logger
}

// New creates the adapter; local is the zone kickoffs are converted into
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
		logger:  logger,
	}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return "rereyano" }

// Fetch implements ingest.Adapter
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	body, _, err := httpclient.Get(ctx, a.client, a.url)
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}
	textarea := doc.Find("textarea").First()
	if textarea.Length() == 0 {
		return nil, ingest.Unavailable(a.Name(), errNoListing)
	}

	return a.Parse(textarea.Text()), nil
}

// Parse turns listing text into records; lines that do not match are skipped
func (a *Adapter) Parse(text string) []schedule.MatchRecord {
	var out []schedule.MatchRecord
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, ok := a.parseLine(line)
		if !ok {
			a.logger.WithField("line", line).Debug("rereyano: line skipped")
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (a *Adapter) parseLine(line string) (schedule.MatchRecord, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return schedule.MatchRecord{}, false
	}
	day, month, year, clock := m[1], m[2], m[3], m[4]
	league := strings.TrimSpace(m[5])
	team1 := strings.TrimSpace(m[6])
	team2 := strings.TrimSpace(m[7])

	var servers []schedule.Server
	for _, ch := range channelPattern.FindAllStringSubmatch(line, -1) {
		servers = append(servers, schedule.Server{
			URL:   a.encoder.Channel("envivo", ch[1]),
			Label: "CH-" + strings.ToUpper(ch[2]),
		})
	}
	if len(servers) == 0 {
		return schedule.MatchRecord{}, false
	}

	kickoff, err := time.ParseInLocation("2006-01-02 15:04", year+"-"+month+"-"+day+" "+padClock(clock), a.from)
	if err != nil {
		return schedule.MatchRecord{}, false
	}
	local := kickoff.In(a.to)

	return schedule.MatchRecord{
		ID:          ingest.CompactID(league, team1, team2),
		League:      league,
		Team1:       schedule.Team{Name: team1},
		Team2:       schedule.Team{Name: team2},
		KickoffDate: local.Format("2006-01-02"),
		KickoffTime: local.Format("15:04"),
		Duration:    defaultDuration,
		Servers:     servers,
	}, true
}

func padClock(clock string) string {
	if len(clock) == 4 {
		return "0" + clock
	}
	return clock
}
