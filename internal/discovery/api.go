package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
)

// apiPageSize is the page size requested from provider endpoints.
const apiPageSize = 50

// apiListResponse is the structured listing shape provider endpoints
// expose. NextPage of zero means the listing is exhausted.
type apiListResponse struct {
	Recipes []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"recipes"`
	NextPage int `json:"next_page"`
}

// APIStrategy discovers URLs by paging through a provider-exposed JSON
// endpoint. No HTML parsing is involved.
type APIStrategy struct {
	client *fetcher.Client
	logger logger.Interface
}

// NewAPIStrategy creates an API discovery strategy.
func NewAPIStrategy(client *fetcher.Client, log logger.Interface) *APIStrategy {
	return &APIStrategy{
		client: client,
		logger: log.WithComponent("discovery.api"),
	}
}

// Discover pages through the listing endpoint at the root URL until
// MaxCount candidates are collected or the listing is exhausted. MaxDepth
// bounds the number of pages requested.
func (s *APIStrategy) Discover(ctx context.Context, req Request) ([]DiscoveredURL, error) {
	host, err := hostOf(req.RootURL)
	if err != nil {
		return nil, &Error{ProviderID: req.ProviderID, Strategy: domain.DiscoveryAPI, Err: err}
	}

	maxPages := req.MaxDepth
	if maxPages <= 0 {
		maxPages = 1
	}

	var (
		found []DiscoveredURL
		seen  = make(map[string]struct{})
		next  = 1
	)

	for pages := 0; pages < maxPages && next > 0 && len(found) < req.MaxCount; pages++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{ProviderID: req.ProviderID, Strategy: domain.DiscoveryAPI, Err: ctxErr, Transient: true}
		}

		body, fetchErr := s.client.Fetch(ctx, pageURL(req.RootURL, next))
		if fetchErr != nil {
			return nil, &Error{
				ProviderID: req.ProviderID,
				Strategy:   domain.DiscoveryAPI,
				Err:        fetchErr,
				Transient:  transientFetch(fetchErr),
			}
		}

		var resp apiListResponse
		if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
			return nil, &Error{
				ProviderID: req.ProviderID,
				Strategy:   domain.DiscoveryAPI,
				Err:        fmt.Errorf("decode listing page %d: %w", next, decodeErr),
			}
		}

		for _, item := range resp.Recipes {
			candidate, ok := normalizeCandidate(item.URL, host)
			if !ok {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			found = append(found, DiscoveredURL{
				URL:     candidate,
				Title:   item.Title,
				Snippet: item.Description,
			})
			if len(found) >= req.MaxCount {
				break
			}
		}

		next = resp.NextPage
	}

	return found, nil
}

// pageURL appends pagination parameters to the listing endpoint.
func pageURL(rootURL string, pageNum int) string {
	parsed, err := url.Parse(rootURL)
	if err != nil {
		return rootURL
	}
	q := parsed.Query()
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("per_page", strconv.Itoa(apiPageSize))
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// transientFetch classifies a fetch failure for retry purposes.
func transientFetch(err error) bool {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}
