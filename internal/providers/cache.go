package providers

import (
	"context"
	"sync"
	"time"

	"github.com/chefstream/harvester/internal/domain"
)

// DefaultCacheTTL bounds how long fetched configurations are reused.
const DefaultCacheTTL = 5 * time.Minute

// CachedClient decorates a Client with a TTL cache. Configurations are
// immutable for the duration of a run, so a short TTL is safe and spares
// the configuration service one request per batch item.
type CachedClient struct {
	client Client
	ttl    time.Duration

	mu        sync.Mutex
	byID      map[string]cachedConfig
	enabled   []*domain.ProviderConfig
	enabledAt time.Time
}

// cachedConfig is one cached configuration with its fetch time.
type cachedConfig struct {
	cfg       *domain.ProviderConfig
	fetchedAt time.Time
}

// NewCachedClient wraps a client with a TTL cache. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewCachedClient(client Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{
		client: client,
		ttl:    ttl,
		byID:   make(map[string]cachedConfig),
	}
}

// GetByProviderID returns a cached configuration when fresh, fetching
// otherwise.
func (c *CachedClient) GetByProviderID(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	c.mu.Lock()
	if entry, ok := c.byID[id]; ok && time.Since(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.cfg, nil
	}
	c.mu.Unlock()

	cfg, err := c.client.GetByProviderID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byID[id] = cachedConfig{cfg: cfg, fetchedAt: time.Now()}
	c.mu.Unlock()

	return cfg, nil
}

// GetAllEnabled returns the cached enabled-provider list when fresh,
// fetching otherwise. Fetched configurations also refresh the per-ID cache.
func (c *CachedClient) GetAllEnabled(ctx context.Context) ([]*domain.ProviderConfig, error) {
	c.mu.Lock()
	if c.enabled != nil && time.Since(c.enabledAt) < c.ttl {
		cached := c.enabled
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	configs, err := c.client.GetAllEnabled(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c.mu.Lock()
	c.enabled = configs
	c.enabledAt = now
	for _, cfg := range configs {
		c.byID[cfg.ID] = cachedConfig{cfg: cfg, fetchedAt: now}
	}
	c.mu.Unlock()

	return configs, nil
}
