package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending requests in Redis so any replica can resume them. GETDEL makes the
// take atomic across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "session-store", "backend": "redis"}),
	}
}

// WithClock replaces the time source used to stamp and age entries.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) key(requestID string) string {
	return s.prefix + requestID
}

func (s *RedisStore) Put(ctx context.Context, pending *models.PendingRequest) (string, error) {
	id := ensureID(pending)
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = s.now()
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return "", fmt.Errorf("marshal pending request: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(id), data, s.ttl).Result()
	if err != nil {
		metrics.SessionOperations.WithLabelValues("redis", "put", "error").Inc()
		return "", fmt.Errorf("store pending request: %w", err)
	}
	if !ok {
		metrics.SessionOperations.WithLabelValues("redis", "put", "duplicate").Inc()
		return "", ErrDuplicateRequest
	}

	metrics.SessionOperations.WithLabelValues("redis", "put", "ok").Inc()
	s.logger.Debug("Pending request stored", map[string]interface{}{"requestId": id})
	return id, nil
}

func (s *RedisStore) Take(ctx context.Context, requestID string) (*models.PendingRequest, error) {
	val, err := s.client.GetDel(ctx, s.key(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.SessionOperations.WithLabelValues("redis", "take", "not_found").Inc()
		return nil, ErrSessionNotFound
	}
	if err != nil {
		metrics.SessionOperations.WithLabelValues("redis", "take", "error").Inc()
		return nil, fmt.Errorf("take pending request: %w", err)
	}

	var pending models.PendingRequest
	if err := json.Unmarshal([]byte(val), &pending); err != nil {
		s.logger.Warn("Dropping unreadable pending request", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
		metrics.SessionOperations.WithLabelValues("redis", "take", "corrupt").Inc()
		return nil, ErrSessionNotFound
	}

	if pending.IsExpired(s.now(), s.ttl) {
		metrics.SessionOperations.WithLabelValues("redis", "take", "expired").Inc()
		return nil, ErrSessionExpired
	}

	metrics.SessionOperations.WithLabelValues("redis", "take", "hit").Inc()
	return &pending, nil
}
