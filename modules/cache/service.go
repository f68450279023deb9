// Package cache provides a JSON cache on top of the mono storage interface.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono/pkg/storage"
)

// CacheService is the cache port used by other modules.
type CacheService interface {
	// Get unmarshals the cached value into dest and reports whether the key was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value as JSON with the default TTL.
	Set(ctx context.Context, key string, value any) error
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying storage.
	Close() error
}

type cacheService struct {
	storage storage.Storage
	prefix  string
	ttl     time.Duration
}

// NewCacheService wraps s. Every key is namespaced with prefix.
func NewCacheService(s storage.Storage, prefix string, ttl time.Duration) CacheService {
	return &cacheService{
		storage: s,
		prefix:  prefix,
		ttl:     ttl,
	}
}

func (c *cacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.storage.GetWithContext(ctx, c.prefix+key)
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return true, nil
}

func (c *cacheService) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.storage.SetWithContext(ctx, c.prefix+key, data, c.ttl); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *cacheService) Delete(ctx context.Context, key string) error {
	if err := c.storage.DeleteWithContext(ctx, c.prefix+key); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *cacheService) Close() error {
	return c.storage.Close()
}

// Nop is a CacheService that never stores anything. Modules fall back to it
// when the cache plugin is not registered.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }
func (Nop) Delete(context.Context, string) error           { return nil }
func (Nop) Close() error                                   { return nil }
