package kvstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore returns a process-local store. Expired items are removed lazily on read and by
// the go-cache janitor every sweepInterval.
func NewMemoryStore(sweepInterval time.Duration) Store {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}
	return &memoryStore{
		cache: gocache.New(gocache.NoExpiration, sweepInterval),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw := v.([]byte)
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Set(key, stored, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *memoryStore) Ping(context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	s.cache.Flush()
	return nil
}
