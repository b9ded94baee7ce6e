package params

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonBlockingTimeout = 5 * time.Second

// RedisStore is the persistent store. Keys are namespaced with a prefix so
// the main and backup stores can share one server.
type RedisStore struct {
	client *redis.Client
	prefix string

	pending sync.WaitGroup
}

// NewRedisStore connects to url and checks the server answers
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client; the store takes ownership
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) GetBool(ctx context.Context, key string) (bool, error) {
	v, _, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return parseBool(v), nil
}

func (s *RedisStore) GetInt(ctx context.Context, key string) (int, error) {
	v, _, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return parseInt(key, v)
}

func (s *RedisStore) Put(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) PutBool(ctx context.Context, key string, value bool) error {
	return s.Put(ctx, key, formatBool(value))
}

func (s *RedisStore) PutNonBlocking(key, value string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), nonBlockingTimeout)
		defer cancel()
		if err := s.Put(ctx, key, value); err != nil {
			log.Printf("Failed to write param: %v\n", err)
		}
	}()
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Flush waits for queued non-blocking writes
func (s *RedisStore) Flush() {
	s.pending.Wait()
}

// Close flushes pending writes and closes the connection
func (s *RedisStore) Close() error {
	s.Flush()
	return s.client.Close()
}
