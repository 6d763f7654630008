package schedule

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_PreservesNonASCIIAndIndents(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []MatchRecord{{
		ID:     "x",
		League: "Liga Española",
		Team1:  Team{Name: "Atlético Madrid"},
		Team2:  Team{Name: "Málaga & Co"},
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Liga Española")
	assert.Contains(t, out, "Atlético Madrid")
	assert.Contains(t, out, "Málaga & Co")
	assert.NotContains(t, out, `\u00`)
	assert.True(t, strings.HasPrefix(out, "[\n  {\n    \"id\": \"x\""), out)
	assert.Contains(t, out, `"servers": []`)
	assert.NotContains(t, out, `"logo"`)
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestDecode_SkipsMalformedEntries(t *testing.T) {
	in := `[
		{"id": "a", "league": "L", "team1": {"name": "A"}, "team2": {"name": "B"}, "extra": 1},
		"not an object",
		{"id": "b", "team1": {"name": "C"}, "servers": null}
	]`
	records, errs := Decode(strings.NewReader(in))
	require.Len(t, records, 2)
	assert.Len(t, errs, 1)
	assert.Equal(t, "a", records[0].ID)
	assert.NotNil(t, records[1].Servers)
	assert.Empty(t, records[1].Servers)
}

func TestDecode_NotAnArray(t *testing.T) {
	records, errs := Decode(strings.NewReader(`{"id": "a"}`))
	assert.Nil(t, records)
	require.Len(t, errs, 1)
}

func TestWriteFileReadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schedule.json")
	in := []MatchRecord{{
		ID:      "m1",
		Team1:   Team{Name: "Persib", Logo: "https://logo/persib.png"},
		Servers: []Server{{URL: "u1", Label: "CH-1"}},
	}}
	require.NoError(t, WriteFile(path, in))

	out, errs := ReadFile(path)
	assert.Empty(t, errs)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestClone_DoesNotAliasServers(t *testing.T) {
	orig := MatchRecord{Servers: []Server{{URL: "a"}}}
	cpy := orig.Clone()
	cpy.Servers[0].URL = "b"
	assert.Equal(t, "a", orig.Servers[0].URL)
}

func TestIsLive(t *testing.T) {
	assert.True(t, MatchRecord{KickoffDate: Live, KickoffTime: Live}.IsLive())
	assert.True(t, MatchRecord{KickoffTime: "LIVE"}.IsLive())
	assert.False(t, MatchRecord{KickoffDate: "2025-01-01", KickoffTime: "10:00"}.IsLive())
}
