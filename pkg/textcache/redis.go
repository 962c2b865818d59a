package textcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPayloadField  = "payload"
	redisStoredAtField = "stored_at"
)

// RedisStore is an alternative Store for deployments that already run the
// rest of their tooling against Redis. Entries live in a hash per key so the
// stored-at instant can be inspected during eviction without decoding the
// payload.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to the given Redis URL and verifies connectivity.
// All keys are namespaced under prefix.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if prefix == "" {
		prefix = "prosegen-cache:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.rdb.HGet(ctx, s.redisKey(key), redisPayloadField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error {
	return s.rdb.HSet(ctx, s.redisKey(key),
		redisPayloadField, payload,
		redisStoredAtField, storedAt.Unix(),
	).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.redisKey(key)).Err()
}

// EvictOlderThan implements Store. It walks the namespace with SCAN rather
// than KEYS so a shared Redis is never blocked.
func (s *RedisStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var (
		cursor  uint64
		evicted int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"*", 200).Result()
		if err != nil {
			return evicted, err
		}
		for _, key := range keys {
			raw, err := s.rdb.HGet(ctx, key, redisStoredAtField).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return evicted, err
			}
			storedAt, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			if time.Unix(storedAt, 0).Before(cutoff) {
				if err := s.rdb.Del(ctx, key).Err(); err != nil {
					return evicted, err
				}
				evicted++
			}
		}
		cursor = next
		if cursor == 0 {
			return evicted, nil
		}
	}
}
