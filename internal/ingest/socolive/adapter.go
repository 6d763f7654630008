// Package socolive scrapes the socolive match list for Indonesian league
// fixtures and their commentator rooms.
package socolive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

const (
	// DefaultURL is the match list page
	DefaultURL = "https://socolive111.ac/"

	// SourceZone is the zone listing times are published in
	SourceZone = "Asia/Ho_Chi_Minh"

	// LeagueFilter keeps only rows whose competition contains it
	LeagueFilter = "Giải bóng đá VĐQG Indonesia"

	// RoomURL is the HLS playlist of a commentator room
	RoomURL = "https://live.inplyr.com/room/%s.m3u8"

	defaultDuration = "3.0"
	unknownName     = "Unknown"
)

var errNoListing = errors.New("no match rows on page")

// Adapter fetches and parses the socolive match list
type Adapter struct {
	url     string
	client  *http.Client
	from    *time.Location
	to      *time.Location
	encoder ingest.StreamEncoder
	logger  *logrus.Logger
	now     func() time.Time
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
		now:     time.Now,
	}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return "socolive" }

// Fetch implements ingest.Adapter
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	body, _, err := httpclient.Get(ctx, a.client, a.url)
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}
	records, err := a.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}
	return records, nil
}

// Parse reads the match list HTML. Rows outside LeagueFilter and rows
// without a usable room are skipped.
func (a *Adapter) Parse(r io.Reader) ([]schedule.MatchRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	rows := doc.Find("div.match-item")
	if rows.Length() == 0 {
		return nil, errNoListing
	}

	base, err := url.Parse(a.url)
	if err != nil {
		return nil, err
	}

	var out []schedule.MatchRecord
	rows.Each(func(_ int, row *goquery.Selection) {
		league := strings.TrimSpace(row.Find("div.match-item__comp").First().Text())
		if !strings.Contains(league, LeagueFilter) {
			return
		}
		rec, ok := a.parseRow(base, league, row)
		if !ok {
			return
		}
		out = append(out, rec)
	})
	return out, nil
}

func (a *Adapter) parseRow(base *url.URL, league string, row *goquery.Selection) (schedule.MatchRecord, bool) {
	href, ok := row.Find("a.link-match").First().Attr("href")
	if !ok || href == "" {
		return schedule.MatchRecord{}, false
	}
	link, err := base.Parse(href)
	if err != nil {
		return schedule.MatchRecord{}, false
	}

	team1 := spanText(row.Find("div.name-home").First())
	team2 := spanText(row.Find("div.name-away").First())
	log := a.logger.WithFields(logrus.Fields{"team1": team1, "team2": team2})

	servers := a.rooms(base, row)
	if len(servers) == 0 {
		log.Debug("socolive: no rooms, row skipped")
		return schedule.MatchRecord{}, false
	}

	clock := strings.TrimSpace(row.Find("div.match-item__time span").First().Text())
	date, kickoff := a.kickoff(clock)
	if kickoff == "" {
		log.WithField("time", clock).Debug("socolive: unreadable time, using today 00:00")
		date, kickoff = a.now().In(a.to).Format("2006-01-02"), "00:00"
	}

	return schedule.MatchRecord{
		ID:          matchID(link),
		League:      league,
		Team1:       schedule.Team{Name: team1},
		Team2:       schedule.Team{Name: team2},
		KickoffDate: date,
		KickoffTime: kickoff,
		Duration:    defaultDuration,
		Servers:     servers,
	}, true
}

func (a *Adapter) rooms(base *url.URL, row *goquery.Selection) []schedule.Server {
	var servers []schedule.Server
	row.Find("div.blv-item-scl a.dropdown-item").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Attr("href")
		if !ok || href == "" {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			return
		}
		room := u.Query().Get("blv")
		if room == "" {
			return
		}
		servers = append(servers, schedule.Server{
			URL:   a.encoder.HLS(fmt.Sprintf(RoomURL, room)),
			Label: "CH-VN (" + spanText(item) + ")",
		})
	})
	return servers
}

// kickoff reads "HH:MM DD/MM". The year is the current one, or the next
// when the date lies more than six months in the past.
func (a *Adapter) kickoff(text string) (string, string) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "", ""
	}
	now := a.now().In(a.from)
	t, err := time.ParseInLocation("02/01/2006 15:04", parts[1]+"/"+now.Format("2006")+" "+parts[0], a.from)
	if err != nil {
		return "", ""
	}
	if t.Before(now.AddDate(0, -6, 0)) {
		t = t.AddDate(1, 0, 0)
	}
	local := t.In(a.to)
	return local.Format("2006-01-02"), local.Format("15:04")
}

// matchID is the second to last path segment, "/truc-tiep/a-vs-b/123/" gives "123"
func matchID(link *url.URL) string {
	segments := strings.Split(link.Path, "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

func spanText(s *goquery.Selection) string {
	span := s.Find("span").First()
	if span.Length() == 0 {
		return unknownName
	}
	if text := strings.TrimSpace(span.Text()); text != "" {
		return text
	}
	return unknownName
}
