// Package kv provides the shared key-value store used by click tracking,
// pixel events and upstream caches.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrWrongType is returned when a string operation targets a hash or the reverse.
	ErrWrongType = errors.New("kv: wrong value type for key")
	// ErrNotInteger is returned when Incr targets a non-numeric value.
	ErrNotInteger = errors.New("kv: value is not an integer")
)

// Store is the minimal command set the tracking subsystem needs.
// A ttl of zero means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete on a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	// Incr creates a missing key with value 1. Existing expiry is kept.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire on a missing key is a no-op. A ttl <= 0 deletes the key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// HGetAll returns an empty map for a missing key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Keys lists keys matching a Redis-style glob pattern, where * matches any
	// run of characters including '/'. A limit of 0 returns all matches.
	// Order is unspecified.
	Keys(ctx context.Context, pattern string, limit int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
