package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

const (
	// counterTTL outlives any billing period so a counter is never dropped mid-month.
	counterTTL = 62 * 24 * time.Hour
	// maxEventsPerKey bounds the audit list kept next to each counter.
	maxEventsPerKey = 100
)

// RedisStore keeps one counter per key plus a capped list of recent events.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) counterKey(key Key) string {
	return fmt.Sprintf("usage:%s:%s:%s", key.UserID, key.Category, key.Period)
}

func (s *RedisStore) eventsKey(key Key) string {
	return s.counterKey(key) + ":events"
}

func (s *RedisStore) Count(ctx context.Context, key Key) (int, error) {
	n, err := s.rdb.Get(ctx, s.counterKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("key", s.counterKey(key)).Msg("failed to read usage counter")
		return 0, errx.WrapRedis(err)
	}
	return n, nil
}

func (s *RedisStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(map[string]any{
		"id":       event.ID,
		"at":       event.At,
		"metadata": event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}
	counter, events := s.counterKey(event.Key), s.eventsKey(event.Key)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, counter)
		pipe.Expire(ctx, counter, counterTTL)
		pipe.LPush(ctx, events, payload)
		pipe.LTrim(ctx, events, 0, maxEventsPerKey-1)
		pipe.Expire(ctx, events, counterTTL)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", counter).Msg("failed to record usage in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
