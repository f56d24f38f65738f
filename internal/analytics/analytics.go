// Package analytics captures funnel and operational events without ever
// failing the caller. Events land in an in-process ring buffer and, when redis
// is configured, are mirrored to a capped list so they survive restarts.
package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKey = "leadrail:analytics:events"

type Event struct {
	TS   time.Time      `json:"ts"`
	Type string         `json:"type"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Tracker is constructed once per process and injected. The in-process
// buffer does not survive restarts; the redis mirror does.
type Tracker struct {
	log    *zap.Logger
	client *redis.Client
	max    int

	mu  sync.Mutex
	buf []Event
}

func NewTracker(log *zap.Logger, client *redis.Client, maxEvents int) *Tracker {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &Tracker{
		log:    log.Named("analytics"),
		client: client,
		max:    maxEvents,
	}
}

func (t *Tracker) Track(ctx context.Context, eventType string, meta map[string]any) {
	ev := Event{TS: time.Now().UTC(), Type: eventType, Meta: meta}

	t.mu.Lock()
	t.buf = append([]Event{ev}, t.buf...)
	if len(t.buf) > t.max {
		t.buf = t.buf[:t.max]
	}
	t.mu.Unlock()

	if t.client == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pipe := t.client.Pipeline()
	pipe.LPush(ctx, redisKey, raw)
	pipe.LTrim(ctx, redisKey, 0, int64(t.max-1))
	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Debug("analytics redis mirror failed", zap.Error(err))
	}
}

func (t *Tracker) Recent(ctx context.Context, limit int) []Event {
	if limit <= 0 || limit > t.max {
		limit = t.max
	}

	if t.client != nil {
		lines, err := t.client.LRange(ctx, redisKey, 0, int64(limit-1)).Result()
		if err == nil {
			out := make([]Event, 0, len(lines))
			for _, line := range lines {
				var ev Event
				if err := json.Unmarshal([]byte(line), &ev); err == nil {
					out = append(out, ev)
				}
			}
			return out
		}
		t.log.Debug("analytics redis read failed", zap.Error(err))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if limit > len(t.buf) {
		limit = len(t.buf)
	}
	out := make([]Event, limit)
	copy(out, t.buf[:limit])
	return out
}
