// Package providers supplies per-run provider configurations from the
// external configuration service. The orchestrator never reads the
// configuration backing store directly; it goes through a TTL-cached
// client.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrProviderNotFound is returned when a provider is not found.
var ErrProviderNotFound = errors.New("provider not found")

// Client defines the interface for fetching provider configurations.
type Client interface {
	GetByProviderID(ctx context.Context, id string) (*domain.ProviderConfig, error)
	GetAllEnabled(ctx context.Context) ([]*domain.ProviderConfig, error)
}

// defaultHTTPTimeout bounds configuration service requests.
const defaultHTTPTimeout = 10 * time.Second

// HTTPClient implements Client using HTTP requests to the configuration
// service.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client for the configuration service.
// If httpClient is nil, a default client with a 10 second timeout is used.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// GetByProviderID fetches one provider configuration by ID.
func (c *HTTPClient) GetByProviderID(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	url := fmt.Sprintf("%s/api/v1/providers/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var cfg domain.ProviderConfig
	if decodeErr := json.NewDecoder(resp.Body).Decode(&cfg); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	return &cfg, nil
}

// GetAllEnabled fetches all enabled provider configurations.
func (c *HTTPClient) GetAllEnabled(ctx context.Context) ([]*domain.ProviderConfig, error) {
	url := c.baseURL + "/api/v1/providers?enabled=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch providers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var configs []*domain.ProviderConfig
	if decodeErr := json.NewDecoder(resp.Body).Decode(&configs); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	enabled := make([]*domain.ProviderConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}

	return enabled, nil
}
