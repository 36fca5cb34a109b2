package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// defaultRenderTimeout bounds render calls when the caller supplies no
// client. Rendering is slower than plain fetching.
const defaultRenderTimeout = 60 * time.Second

// ServiceRenderer retrieves fully rendered HTML from an external headless
// rendering service, for providers whose listing pages are script-driven.
// The service is expected to expose GET {base}/render?url={target}.
type ServiceRenderer struct {
	baseURL string
	client  *http.Client
}

// NewServiceRenderer creates a renderer client against the given service.
func NewServiceRenderer(baseURL string, httpClient *http.Client) *ServiceRenderer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRenderTimeout}
	}
	return &ServiceRenderer{baseURL: baseURL, client: httpClient}
}

// Render returns the rendered HTML for the target URL.
func (r *ServiceRenderer) Render(ctx context.Context, target string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/render?url=%s", r.baseURL, url.QueryEscape(target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err, Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("render service returned status %d", resp.StatusCode),
			Transient:  resp.StatusCode == statusTooManyReqs || resp.StatusCode >= statusServerErrLow,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err, Transient: true}
	}
	return body, nil
}
