package rereyano

import (
	"context"
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

func newAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	logger, _ := test.NewNullLogger()
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	client := httpclient.NewHTTPClient(httpclient.Options{}, logger)
	return New(url, client, jakarta, ingest.StreamEncoder{Prefix: "https://player.test/"}, logger)
}

func TestAdapter_Fetch(t *testing.T) {
	page, err := os.ReadFile("testdata/listing.html")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(page)
	}))
	defer srv.Close()

	records, err := newAdapter(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	first := records[0]
	assert.Equal(t, "PremierLeague-Arsenal-Chelsea", first.ID)
	assert.Equal(t, "Premier League", first.League)
	assert.Equal(t, "Arsenal", first.Team1.Name)
	assert.Equal(t, "Chelsea", first.Team2.Name)
	assert.Equal(t, "2025-03-15", first.KickoffDate)
	assert.Equal(t, "03:00", first.KickoffTime)
	assert.Equal(t, "3.5", first.Duration)
	assert.Equal(t, []schedule.Server{
		{URL: "https://player.test/?envivo=12", Label: "CH-EN"},
		{URL: "https://player.test/?envivo=40", Label: "CH-ES"},
	}, first.Servers)

	assert.Equal(t, "05:30", records[1].KickoffTime)

	f1 := records[2]
	assert.Equal(t, "Australian Grand Prix", f1.Team1.Name)
	assert.Empty(t, f1.Team2.Name)
	assert.Equal(t, "Formula1-AustralianGrandPrix", f1.ID)

	aleague := records[3]
	assert.Equal(t, "A-League", aleague.League)
	assert.Equal(t, "Sydney FC", aleague.Team1.Name)
	assert.Equal(t, "2025-03-16", aleague.KickoffDate)
	assert.Equal(t, "15:05", aleague.KickoffTime)
	assert.Len(t, aleague.Servers, 2)
}

func TestAdapter_NoTextarea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	_, err := newAdapter(t, srv.URL).Fetch(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrSourceUnavailable))
}

func TestAdapter_ParseSkipsNoise(t *testing.T) {
	a := newAdapter(t, "")
	assert.Empty(t, a.Parse("garbage\n\n32-13-2025 (99:99) X : A - B (CH1en)\n"))
}
