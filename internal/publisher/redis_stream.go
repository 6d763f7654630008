package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/jadwal/internal/ingest"
)

// RunsStream receives one entry per finished run
const RunsStream = "schedule.runs"

// defaultMaxLen caps the stream length (approximate trimming)
const defaultMaxLen = 1000

// RedisPublisher publishes run summaries to a Redis stream
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher connects to redisURL and pings it
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewRedisPublisherFromClient(client), nil
}

// NewRedisPublisherFromClient publishes through an existing client
func NewRedisPublisherFromClient(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, stream: RunsStream, maxLen: defaultMaxLen}
}

// Close closes the Redis connection
func (rp *RedisPublisher) Close() error {
	return rp.client.Close()
}

// Name implements ingest.Sink
func (rp *RedisPublisher) Name() string { return "redis-stream" }

// Publish implements ingest.Sink
func (rp *RedisPublisher) Publish(ctx context.Context, report *ingest.RunReport) error {
	return rp.PublishRun(ctx, report)
}

// PublishRun appends the run summary to the runs stream
func (rp *RedisPublisher) PublishRun(ctx context.Context, report *ingest.RunReport) error {
	values, err := StreamValues(report)
	if err != nil {
		return err
	}
	return rp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rp.stream,
		MaxLen: rp.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

// StreamValues is the field set of one stream entry
func StreamValues(report *ingest.RunReport) (map[string]interface{}, error) {
	data, err := json.Marshal(report.Summary())
	if err != nil {
		return nil, fmt.Errorf("encoding run summary: %w", err)
	}
	return map[string]interface{}{
		"run_id":    report.ID,
		"fixtures":  len(report.Schedule),
		"data":      string(data),
		"timestamp": report.FinishedAt.Unix(),
	}, nil
}
