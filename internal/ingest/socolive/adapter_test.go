package socolive

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

func newAdapter(t *testing.T, url string, local *time.Location, now time.Time) *Adapter {
	t.Helper()
	logger, _ := test.NewNullLogger()
	client := httpclient.NewHTTPClient(httpclient.Options{}, logger)
	a := New(url, client, local, ingest.StreamEncoder{Prefix: "https://player.test/"}, logger)
	a.now = func() time.Time { return now }
	return a
}

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return loc
}

func room(id string) string {
	return "https://player.test/?hls=" + base64.StdEncoding.EncodeToString([]byte("https://live.inplyr.com/room/"+id+".m3u8"))
}

func TestAdapter_Fetch(t *testing.T) {
	page, err := os.ReadFile("testdata/listing.html")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(page)
	}))
	defer srv.Close()

	now := time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)
	records, err := newAdapter(t, srv.URL+"/", jakarta(t), now).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "100234", first.ID)
	assert.Equal(t, "Giải bóng đá VĐQG Indonesia", first.League)
	assert.Equal(t, "Persib Bandung", first.Team1.Name)
	assert.Equal(t, "Persija Jakarta", first.Team2.Name)
	assert.Equal(t, "2025-11-29", first.KickoffDate)
	assert.Equal(t, "19:00", first.KickoffTime)
	assert.Equal(t, "3.0", first.Duration)
	assert.Equal(t, []schedule.Server{
		{URL: room("tung88"), Label: "CH-VN (BLV Tùng)"},
		{URL: room("mua12"), Label: "CH-VN (BLV Mưa)"},
	}, first.Servers)

	partial := records[1]
	assert.Equal(t, "100251", partial.ID)
	assert.Equal(t, "Persebaya Surabaya", partial.Team1.Name)
	assert.Equal(t, "Unknown", partial.Team2.Name)
	assert.Equal(t, "2025-11-28", partial.KickoffDate)
	assert.Equal(t, "00:00", partial.KickoffTime)
	assert.Equal(t, []schedule.Server{{URL: room("room7"), Label: "CH-VN (Unknown)"}}, partial.Servers)
}

func TestAdapter_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	now := time.Now()
	_, err := newAdapter(t, srv.URL, jakarta(t), now).Fetch(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrSourceUnavailable))

	_, err = newAdapter(t, srv.URL+"/down", jakarta(t), now).Fetch(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrSourceUnavailable))
}

func TestKickoff(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		local     *time.Location
		text      string
		wantDate  string
		wantClock string
	}{
		{"same year", time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC), jakarta(t), "19:00 29/11", "2025-11-29", "19:00"},
		{"converted to utc", time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC), time.UTC, "19:00 29/11", "2025-11-29", "12:00"},
		{"rolls into next year", time.Date(2025, 12, 30, 12, 0, 0, 0, time.UTC), jakarta(t), "20:00 02/01", "2026-01-02", "20:00"},
		{"recent past stays", time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC), jakarta(t), "20:00 01/03", "2025-03-01", "20:00"},
		{"no date", time.Now(), jakarta(t), "19:00", "", ""},
		{"garbage", time.Now(), jakarta(t), "Live 99/99", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t, "", tt.local, tt.now)
			date, clock := a.kickoff(tt.text)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantClock, clock)
		})
	}
}
