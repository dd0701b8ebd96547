package session

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

// RedisStore keeps each session as one JSON document. Writes are guarded by
// WATCH on the key and a version compare; every save refreshes the TTL.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	key := r.sessionKey(id)
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.NotFound("session %s not found", id)
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		logx.Error().Err(err).Str("sessionID", id).Msg("failed to unmarshal session")
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session, expectedVersion int64) error {
	b, err := json.Marshal(s)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", s.ID).Msg("failed to marshal session")
		return fmt.Errorf("marshal session: %w", err)
	}
	key := r.sessionKey(s.ID)

	var conflict error
	txf := func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != expectedVersion {
			conflict = errx.Conflict(
				fmt.Errorf("session %s at version %d, expected %d", s.ID, stored, expectedVersion),
				"session was updated concurrently",
			)
			return nil
		}
		// extend TTL on touch
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	if conflict != nil {
		logx.Warn().Str("key", key).Int64("expected_version", expectedVersion).Msg("session version conflict")
		return conflict
	}
	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	b, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return 0, fmt.Errorf("unmarshal stored session version: %w", err)
	}
	return head.Version, nil
}

var _ Store = (*RedisStore)(nil)
