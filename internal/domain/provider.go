package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DiscoveryStrategyKind selects how candidate URLs are enumerated for a
// provider.
type DiscoveryStrategyKind string

const (
	// DiscoveryStatic fetches one or more listing pages and extracts links.
	DiscoveryStatic DiscoveryStrategyKind = "static"
	// DiscoveryDynamic renders script-driven pages before link extraction.
	DiscoveryDynamic DiscoveryStrategyKind = "dynamic"
	// DiscoveryAPI pages through a provider-exposed JSON endpoint.
	DiscoveryAPI DiscoveryStrategyKind = "api"
)

// ProviderConfig carries the immutable per-run settings for one provider,
// sourced from the external configuration service.
type ProviderConfig struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Enabled           bool                  `json:"enabled"`
	DiscoveryStrategy DiscoveryStrategyKind `json:"discovery_strategy"`
	BaseURL           string                `json:"base_url"`

	// BatchSize is the maximum item count per run.
	BatchSize int `json:"batch_size"`
	// TimeWindowMinutes is the maximum wall-clock duration per run.
	TimeWindowMinutes int `json:"time_window_minutes"`

	// MinDelayMs is the minimum inter-request delay; the actual delay is
	// randomized to MinDelayMs * (0.8..1.2) before each fetch.
	MinDelayMs int `json:"min_delay_ms"`
	// MaxRequestsPerMinute is the token bucket refill rate.
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`

	RetryCount        int `json:"retry_count"`
	RequestTimeoutSec int `json:"request_timeout_sec"`
	MaxDepth          int `json:"max_depth"`
}

// MaxDuration returns the configured time window as a duration.
func (c *ProviderConfig) MaxDuration() time.Duration {
	return time.Duration(c.TimeWindowMinutes) * time.Minute
}

// MinDelay returns the minimum inter-request delay as a duration.
func (c *ProviderConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Validate checks that the configuration can start a batch. Invalid
// settings are configuration errors: surfaced immediately, no batch is
// created.
func (c *ProviderConfig) Validate() error {
	if c.ID == "" {
		return errors.New("provider id is required")
	}
	if !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("provider %s: base url must be https", c.ID)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("provider %s: batch size must be positive", c.ID)
	}
	if c.TimeWindowMinutes <= 0 {
		return fmt.Errorf("provider %s: time window must be positive", c.ID)
	}
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("provider %s: max requests per minute must be positive", c.ID)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("provider %s: retry count must not be negative", c.ID)
	}
	switch c.DiscoveryStrategy {
	case DiscoveryStatic, DiscoveryDynamic, DiscoveryAPI:
	default:
		return fmt.Errorf("provider %s: unknown discovery strategy %q", c.ID, c.DiscoveryStrategy)
	}
	return nil
}
