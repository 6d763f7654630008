package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/ingest"
)

func TestAdapter_Fetch(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "inplaynet.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "1", "league": "Liga 1", "team1": {"name": "Persib"}, "team2": {"name": "Persija"},
		 "kickoff_date": "live", "kickoff_time": "live", "servers": [{"url": "u", "label": "CH-1"}]},
		42
	]`), 0o644))

	a := New("inplaynet", path, logger)
	assert.Equal(t, "inplaynet", a.Name())

	records, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Persib", records[0].Team1.Name)
	assert.Len(t, hook.Entries, 1)
}

func TestAdapter_MissingFileIsUnavailable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := New("manual", filepath.Join(t.TempDir(), "manual.json"), logger).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingest.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAdapter_NotAnArrayIsUnavailable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oops": true}`), 0o644))

	_, err := New("bad", path, logger).Fetch(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrSourceUnavailable))
}
