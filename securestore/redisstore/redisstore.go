package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/redis/go-redis/v9"
)

var _ securestore.Store = (*Store)(nil)

// Store keeps session slots in Redis under a per-device namespace, for
// headless clients that share a session across processes.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires every slot after ttl. Zero keeps values until removed.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New namespaces keys as "<namespace>:<key>".
func New(rdb redis.UniversalClient, namespace string, options ...Option) *Store {
	s := &Store{rdb: rdb, prefix: namespace + ":"}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[redisstore Get] %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("[redisstore Set] %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("[redisstore Remove] %s: %w", key, err)
	}
	return nil
}
