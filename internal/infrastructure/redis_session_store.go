package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"utmtrack/internal/domain"
	"utmtrack/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "utm:session:"

// RedisSessionStore keeps each session's attribution as one JSON blob. The
// TTL restarts on every save and every successful load.
type RedisSessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration, metrics *metrics.Metrics) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl, metrics: metrics}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID + ":" + domain.SessionStorageKey
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, attribution domain.PersistedAttribution) error {
	raw, err := json.Marshal(attribution)
	if err != nil {
		s.metrics.RecordSessionStoreOp("save", "error")
		return fmt.Errorf("encode attribution: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), raw, s.ttl).Err(); err != nil {
		s.metrics.RecordSessionStoreOp("save", "error")
		return fmt.Errorf("store attribution: %w", err)
	}
	s.metrics.RecordSessionStoreOp("save", "success")
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (domain.PersistedAttribution, bool, error) {
	raw, err := s.client.GetEx(ctx, sessionKey(sessionID), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.metrics.RecordSessionStoreOp("load", "miss")
			return domain.PersistedAttribution{}, false, nil
		}
		s.metrics.RecordSessionStoreOp("load", "error")
		return domain.PersistedAttribution{}, false, fmt.Errorf("load attribution: %w", err)
	}

	var out domain.PersistedAttribution
	if err := json.Unmarshal(raw, &out); err != nil {
		s.metrics.RecordSessionStoreOp("load", "error")
		return domain.PersistedAttribution{}, false, fmt.Errorf("decode attribution: %w", err)
	}
	s.metrics.RecordSessionStoreOp("load", "hit")
	return out, true, nil
}
