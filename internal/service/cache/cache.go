// Package cache holds the byte caches that sit in front of the bar stores.
package cache

import (
	"context"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Backend names, as configured and as reported in metrics labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// Nop never stores anything.
type Nop struct{}

func (Nop) GetBytes(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) SetBytes(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Close() error                                                  { return nil }

var (
	_ BytesCache = Nop{}
	_ BytesCache = (*TTLCache)(nil)
	_ BytesCache = (*RedisCache)(nil)
	_ BytesCache = (*BadgerCache)(nil)
)
