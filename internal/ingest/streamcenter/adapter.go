// Package streamcenter reads fixtures and stream links from the streamcenter
// JSON API.
package streamcenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

// DefaultURL is the fixtures endpoint
const DefaultURL = "https://backendstreamcenter.youshop.pro:488/api/Parties?pageNumber=1&pageSize=500"

const defaultDuration = "3.5"

// Party is one API fixture
type Party struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	GameName    string          `json:"gameName"`
	BeginPartie string          `json:"beginPartie"`
	EndPartie   string          `json:"endPartie"`
	VideoURL    string          `json:"videoUrl"`
}

var languageLabels = []struct {
	label string
	names []string
}{
	{"CH-AR", []string{"arabic", "ar"}},
	{"CH-EN", []string{"english", "en"}},
	{"CH-FR", []string{"french", "fr"}},
	{"CH-ES", []string{"spanish", "es"}},
}

// Adapter fetches and converts API fixtures
type Adapter struct {
	url     string
	client  *http.Client
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
	return &Adapter{url: url, client: client, to: local, encoder: encoder, logger: logger}
}

// Name implements ingest.Adapter
func (a *Adapter) Name() string { return "streamcenter" }

// Fetch implements ingest.Adapter
func (a *Adapter) Fetch(ctx context.Context) ([]schedule.MatchRecord, error) {
	body, _, err := httpclient.Get(ctx, a.client, a.url)
	if err != nil {
		return nil, ingest.Unavailable(a.Name(), err)
	}

	var parties []Party
	if err := json.Unmarshal(body, &parties); err != nil {
		return nil, ingest.Unavailable(a.Name(), fmt.Errorf("decoding parties: %w", err))
	}

	out := make([]schedule.MatchRecord, 0, len(parties))
	for _, p := range parties {
		out = append(out, a.Convert(p))
	}
	return out, nil
}

// Convert maps one API fixture onto a record
func (a *Adapter) Convert(p Party) schedule.MatchRecord {
	team1, team2 := splitTeams(p.Name, p.GameName)
	rec := schedule.MatchRecord{
		ID:       partyID(p.ID),
		Team1:    schedule.Team{Name: team1},
		Team2:    schedule.Team{Name: team2},
		Duration: defaultDuration,
		Servers:  a.servers(p.VideoURL),
	}

	begin, ok := parseInstant(p.BeginPartie)
	if !ok {
		if p.BeginPartie != "" {
			a.logger.WithFields(logrus.Fields{"id": rec.ID, "begin": p.BeginPartie}).Warn("streamcenter: unparseable start time")
		}
		return rec
	}
	local := begin.In(a.to)
	rec.KickoffDate = local.Format("2006-01-02")
	rec.KickoffTime = local.Format("15:04")

	if end, ok := parseInstant(p.EndPartie); ok && end.After(begin) {
		rec.Duration = fmt.Sprintf("%.1f", end.Sub(begin).Hours())
	}
	return rec
}

// splitTeams reads "Home vs Away" from name or "Away at Home" from gameName;
// anything else is a single-participant event.
func splitTeams(name, gameName string) (string, string) {
	if parts := strings.Split(name, " vs "); len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if parts := strings.Split(gameName, " at "); len(parts) == 2 {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}
	if n := strings.TrimSpace(name); n != "" {
		return n, ""
	}
	return "Event", ""
}

func partyID(raw json.RawMessage) string {
	id := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if id == "" || id == "null" {
		return ""
	}
	return "streamcenter-" + id
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// servers splits "url<label;url<label" into wrapped stream links
func (a *Adapter) servers(videoURL string) []schedule.Server {
	out := []schedule.Server{}
	for _, part := range strings.Split(videoURL, ";") {
		raw, label, ok := strings.Cut(strings.TrimSpace(part), "<")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}
		out = append(out, schedule.Server{
			URL:   a.encoder.Iframe(raw),
			Label: languageLabel(strings.TrimSpace(label)),
		})
	}
	return out
}

func languageLabel(label string) string {
	lower := strings.ToLower(label)
	for _, l := range languageLabels {
		for _, name := range l.names {
			if lower == name || (len(name) > 2 && strings.Contains(lower, name)) {
				return l.label
			}
		}
	}
	return "CH-" + strings.ToUpper(label)
}
