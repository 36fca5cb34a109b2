// Package fetcher retrieves recipe pages over HTTP with browser-like
// headers and a rotating user-agent pool. Extraction of recipe data from
// fetched content is delegated to an external collaborator behind the
// Extractor port.
package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// HTTP status bounds used for fetch error classification.
const (
	statusTooManyReqs  = 429
	statusServerErrLow = 500
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrResponseTooLarge is returned when a response exceeds the body cap.
var ErrResponseTooLarge = errors.New("response body too large")

// FetchError describes a failed fetch. Transient reports whether the
// failure class is worth retrying (network errors, 429, 5xx).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Transient  bool
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches pages with stealth headers. The underlying http.Client is
// shared and safe for concurrent provider batches; per-request timeouts
// come from the caller's context.
type Client struct {
	httpClient *http.Client
	uaCounter  atomic.Uint64
}

// NewClient creates a fetch client. If httpClient is nil, http.DefaultClient
// semantics apply with a shared transport.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Fetch retrieves a URL. The context carries the per-provider request
// timeout. Network failures and 429/5xx responses come back as transient
// FetchErrors; other non-200 statuses are permanent.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, Transient: false}
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == statusTooManyReqs || resp.StatusCode >= statusServerErrLow,
		}
	}

	reader := io.Reader(resp.Body)
	// Accept-Encoding is set explicitly, so the transport does not
	// decompress for us.
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return nil, &FetchError{URL: url, Err: gzErr, Transient: false}
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBodyBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err, Transient: true}
	}
	if len(body) > maxResponseBodyBytes {
		return nil, &FetchError{URL: url, Err: ErrResponseTooLarge, Transient: false}
	}

	return body, nil
}

// setHeaders applies the rotating user agent and standard browser-like
// headers to a request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip")
}

// nextUserAgent rotates through the user-agent pool.
func (c *Client) nextUserAgent() string {
	n := c.uaCounter.Add(1)
	return userAgents[int(n)%len(userAgents)]
}
