package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/schedule"
)

func fixture(t1, t2 string) schedule.MatchRecord {
	return schedule.MatchRecord{
		ID:      t1 + "-" + t2,
		Team1:   schedule.Team{Name: t1},
		Team2:   schedule.Team{Name: t2},
		Servers: []schedule.Server{{URL: "u"}},
	}
}

func TestEnrich_RequiresBothLogos(t *testing.T) {
	records := []schedule.MatchRecord{fixture("Arsenal", "Chelsea")}
	out := Enrich(records, LogoIndex{"arsenal": "https://logo/arsenal.png"})
	assert.Empty(t, out)
	assert.Len(t, records, 1)
}

func TestEnrich_AttachesLogos(t *testing.T) {
	idx := LogoIndex{
		"arsenal":           "https://logo/arsenal.png",
		"chelsea":           "https://logo/chelsea.png",
		"manchester-united": "https://logo/mu.png",
		"atletico-madrid":   "https://logo/atm.png",
	}
	records := []schedule.MatchRecord{
		fixture("Arsenal", "Chelsea"),
		fixture("Formula 1", ""),
		fixture("Manchester United", "Atlético Madrid (W)"),
		fixture("Arsenal", "Spurs"),
	}

	out := Enrich(records, idx)
	require.Len(t, out, 2)
	assert.Equal(t, "https://logo/arsenal.png", out[0].Team1.Logo)
	assert.Equal(t, "https://logo/chelsea.png", out[0].Team2.Logo)
	assert.Equal(t, "https://logo/mu.png", out[1].Team1.Logo)
	assert.Equal(t, "https://logo/atm.png", out[1].Team2.Logo)

	assert.Empty(t, records[0].Team1.Logo, "primary schedule must stay untouched")
}

func TestEnrich_EmptyIndex(t *testing.T) {
	out := Enrich([]schedule.MatchRecord{fixture("Arsenal", "Chelsea")}, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestLogoIndex_Resolve(t *testing.T) {
	idx := LogoIndex{"real-madrid": "https://logo/rm.png", "blank": ""}

	url, ok := idx.Resolve("Real Madrid")
	assert.True(t, ok)
	assert.Equal(t, "https://logo/rm.png", url)

	_, ok = idx.Resolve("")
	assert.False(t, ok)
	_, ok = idx.Resolve("Blank")
	assert.False(t, ok)
}
