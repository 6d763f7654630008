package publisher

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/schedule"
)

func report() *ingest.RunReport {
	return &ingest.RunReport{
		ID:         "4f1c2a9e-0000-4000-8000-000000000001",
		FinishedAt: time.Unix(1742025600, 0).UTC(),
		Schedule:   []schedule.MatchRecord{{ID: "a"}, {ID: "b"}},
	}
}

func TestStreamValues(t *testing.T) {
	values, err := StreamValues(report())
	require.NoError(t, err)

	assert.Equal(t, "4f1c2a9e-0000-4000-8000-000000000001", values["run_id"])
	assert.Equal(t, 2, values["fixtures"])
	assert.Equal(t, int64(1742025600), values["timestamp"])

	var summary ingest.RunSummary
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &summary))
	assert.Equal(t, 2, summary.Fixtures)
}

// Needs a live Redis; set JADWAL_TEST_REDIS_URL to run it.
func TestRedisPublisher_PublishRun(t *testing.T) {
	url := os.Getenv("JADWAL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JADWAL_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rp, err := NewRedisPublisher(ctx, url)
	require.NoError(t, err)
	defer rp.Close()

	rp.stream = "jadwal:test:" + t.Name()
	t.Cleanup(func() { rp.client.Del(ctx, rp.stream) })

	require.NoError(t, rp.Publish(ctx, report()))

	entries, err := rp.client.XRange(ctx, rp.stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "4f1c2a9e-0000-4000-8000-000000000001", entries[0].Values["run_id"])
}
