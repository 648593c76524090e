package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// BarCache stores bar histories on top of a byte cache.
type BarCache struct {
	backend BytesCache
	name    string
	ttl     time.Duration
}

func NewBarCache(backend BytesCache, name string, ttl time.Duration) *BarCache {
	if backend == nil {
		backend, name = Nop{}, BackendNone
	}
	return &BarCache{backend: backend, name: name, ttl: ttl}
}

// Backend is the configured backend name, used as a metrics label.
func (c *BarCache) Backend() string { return c.name }

func (c *BarCache) Get(ctx context.Context, key string) (models.Bars, bool, error) {
	b, ok, err := c.backend.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var bars models.Bars
	if err := json.Unmarshal(b, &bars); err != nil {
		return nil, false, fmt.Errorf("decode cached bars %s: %w", key, err)
	}
	return bars, true, nil
}

func (c *BarCache) Set(ctx context.Context, key string, bars models.Bars) error {
	b, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("encode bars %s: %w", key, err)
	}
	return c.backend.SetBytes(ctx, key, b, c.ttl)
}

func (c *BarCache) Close() error { return c.backend.Close() }
