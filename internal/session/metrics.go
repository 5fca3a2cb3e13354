package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsTTL = 7 * 24 * time.Hour

// Metrics keeps hourly detection counters in redis. All writes are fire and
// forget; a metrics failure never affects the detection path.
type Metrics struct {
	redis *redis.Client
}

func NewMetrics(redisClient *redis.Client) *Metrics {
	return &Metrics{redis: redisClient}
}

func metricsKey(t time.Time) string {
	return fmt.Sprintf("metrics:vision:%s", t.UTC().Format("2006010215"))
}

func (m *Metrics) incr(ctx context.Context, field string, by int64) {
	key := metricsKey(time.Now())
	pipe := m.redis.Pipeline()
	pipe.HIncrBy(ctx, key, field, by)
	pipe.Expire(ctx, key, metricsTTL)
	_, _ = pipe.Exec(ctx)
}

func (m *Metrics) RecordFrame(ctx context.Context) {
	m.incr(ctx, "frames", 1)
}

func (m *Metrics) RecordDetection(ctx context.Context, latency time.Duration) {
	key := metricsKey(time.Now())
	pipe := m.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "detections", 1)
	pipe.HIncrBy(ctx, key, "latency_ms", latency.Milliseconds())
	pipe.Expire(ctx, key, metricsTTL)
	_, _ = pipe.Exec(ctx)
}

func (m *Metrics) RecordDropped(ctx context.Context) {
	m.incr(ctx, "dropped", 1)
}

func (m *Metrics) RecordLowConfidence(ctx context.Context) {
	m.incr(ctx, "low_confidence", 1)
}

func (m *Metrics) RecordError(ctx context.Context) {
	m.incr(ctx, "errors", 1)
}

// Snapshot returns the counters for the current hour.
func (m *Metrics) Snapshot(ctx context.Context) (map[string]string, error) {
	return m.redis.HGetAll(ctx, metricsKey(time.Now())).Result()
}
