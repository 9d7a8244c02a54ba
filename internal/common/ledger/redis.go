package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores totals as Redis floats. INCRBYFLOAT keeps concurrent adds from different
// replicas from losing updates; each add refreshes the key's TTL.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	val, err := l.client.Get(ctx, l.prefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read session total: %w", err)
	}
	total, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse session total %q: %w", val, err)
	}
	return round6(total), nil
}

func (l *RedisLedger) Add(ctx context.Context, sessionID string, amount float64) (float64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	key := l.prefix + sessionID
	pipe := l.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, key, amount)
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("add session cost: %w", err)
	}
	return round6(incr.Val()), nil
}
