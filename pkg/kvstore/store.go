// Package kvstore is the shared state behind breach caching and login attempt tracking.
// A memory binding serves single-instance deployments, a redis binding serves fleets.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is a byte-oriented key-value store with per-key expiry.
type Store interface {
	// Get returns the value and true, or nil and false when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A ttl <= 0 keeps the value until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// GetJSON loads key into dst. found is false when the key does not exist.
func GetJSON(ctx context.Context, s Store, key string, dst interface{}) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}
