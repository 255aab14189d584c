package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores conversations as JSON-encoded lists with a per-key TTL,
// refreshed on every append. Suitable when more than one server process
// serves assist traffic.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Turns(ctx context.Context, key Key) ([]Turn, error) {
	raw, err := r.client.LRange(ctx, r.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	out := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			// A malformed entry poisons the whole conversation; start over.
			_ = r.Drop(ctx, key)
			return []Turn{}, nil
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Redis) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("history encode: %w", err)
		}
		values = append(values, b)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key(key), values...)
	pipe.Expire(ctx, r.key(key), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (r *Redis) Drop(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("history drop: %w", err)
	}
	return nil
}

func (r *Redis) key(key Key) string {
	return "assist:history:" + key.ContractID + ":" + key.ClauseID + ":" + key.SessionID
}
