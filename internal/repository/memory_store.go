package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is the embedded driver used for local runs, tests, and as the
// fallback when neither redis nor postgres is reachable.
type MemoryStore struct {
	cache *cache.Cache
	mu    sync.Mutex // serializes Update
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v.([]byte)), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, slices.Clone(value), memoryTTL(ttl))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, key)
	exists := err == nil

	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	s.cache.Set(key, slices.Clone(next), memoryTTL(ttl))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}

func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return cache.NoExpiration
	}
	return ttl
}
