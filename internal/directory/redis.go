package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares directory entries between gateway replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	// expiry lets redis evict entries nobody refreshes; staleness is still
	// decided from FetchedAt.
	expiry time.Duration
}

// NewRedisStore connects and pings the configured server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix, expiry: 2 * ttl}, nil
}

func (s *RedisStore) key(providerID string) string {
	return s.prefix + providerID
}

func (s *RedisStore) Get(ctx context.Context, providerID string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, s.key(providerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode entry %s: %w", providerID, err)
	}
	return e, true, nil
}

func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(entry.ProviderID), data, s.expiry).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
