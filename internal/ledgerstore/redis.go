package ledgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leadrail"

// envelope is the wire form of a snapshot in the redis backend.
type envelope struct {
	Seq       int64           `json:"seq"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// RedisStore keeps the append-only log in a hosted key-value store: one list
// per kind for the ordered history plus one hash per kind for the latest
// snapshot by entity id. A batch append runs in a single MULTI/EXEC pipeline.
type RedisStore struct {
	client *redis.Client
	genID  *snowflake.Node
}

func NewRedisStore(client *redis.Client, genID *snowflake.Node) *RedisStore {
	return &RedisStore{client: client, genID: genID}
}

func logKey(kind Kind) string    { return fmt.Sprintf("%s:%s:log", redisKeyPrefix, kind) }
func latestKey(kind Kind) string { return fmt.Sprintf("%s:%s:latest", redisKeyPrefix, kind) }

func (s *RedisStore) Append(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	pipe := s.client.TxPipeline()
	for _, r := range records {
		env := envelope{
			Seq:       s.genID.Generate().Int64(),
			EntityID:  r.EntityID,
			Payload:   json.RawMessage(r.Payload),
			CreatedAt: now,
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal snapshot envelope: %w", err)
		}
		pipe.RPush(ctx, logKey(r.Kind), raw)
		pipe.HSet(ctx, latestKey(r.Kind), r.EntityID, raw)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Latest(ctx context.Context, kind Kind) ([]Snapshot, error) {
	raw, err := s.client.HGetAll(ctx, latestKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(raw))
	for id, v := range raw {
		var env envelope
		if err := json.Unmarshal([]byte(v), &env); err != nil {
			continue
		}
		out = append(out, snapshotFromEnvelope(kind, id, env))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, kind Kind, entityID string) (*Snapshot, error) {
	raw, err := s.client.HGet(ctx, latestKey(kind), entityID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	snap := snapshotFromEnvelope(kind, entityID, env)
	return &snap, nil
}

func (s *RedisStore) History(ctx context.Context, kind Kind, limit int) ([]Snapshot, error) {
	lines, err := s.client.LRange(ctx, logKey(kind), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(lines))
	// The list is oldest-first; walk it backwards to return newest first.
	for i := len(lines) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		var env envelope
		if err := json.Unmarshal([]byte(lines[i]), &env); err != nil {
			continue
		}
		out = append(out, snapshotFromEnvelope(kind, env.EntityID, env))
	}
	return out, nil
}

func snapshotFromEnvelope(kind Kind, entityID string, env envelope) Snapshot {
	return Snapshot{
		Seq:       env.Seq,
		Kind:      kind,
		EntityID:  entityID,
		Payload:   []byte(env.Payload),
		CreatedAt: env.CreatedAt,
	}
}
