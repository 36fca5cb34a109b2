// Package discovery enumerates candidate recipe URLs for a provider.
// Three pluggable strategies exist: static listing-page crawling,
// script-rendered (dynamic) crawling through an external renderer, and
// structured API pagination. All strategies return absolute HTTPS URLs and
// wrap every failure in a typed *Error so the orchestrator's retry
// classification works uniformly across them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
)

// DiscoveredURL is one candidate recipe page found during discovery.
// Title and Snippet are whatever was cheaply available at discovery time
// (anchor text, API fields); they feed the lightweight fingerprint scan.
type DiscoveredURL struct {
	URL     string
	Title   string
	Snippet string
}

// Request describes one discovery invocation.
type Request struct {
	RootURL    string
	ProviderID string
	MaxDepth   int
	MaxCount   int
}

// Strategy enumerates candidate URLs for a provider.
type Strategy interface {
	Discover(ctx context.Context, req Request) ([]DiscoveredURL, error)
}

// Error is the typed discovery failure. Transient failures (network,
// rate-limit, 5xx) are retried by the orchestrator; permanent ones
// (unsupported response, bad configuration) are not.
type Error struct {
	ProviderID string
	Strategy   domain.DiscoveryStrategyKind
	Err        error
	Transient  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("discovery (%s strategy) for provider %s: %v", e.Strategy, e.ProviderID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnknownStrategy is returned by the factory for an unrecognized
// strategy selector.
var ErrUnknownStrategy = errors.New("unknown discovery strategy")

// Renderer is the external headless-rendering collaborator used by the
// dynamic strategy. It returns the fully rendered HTML for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Deps carries the collaborators a strategy may need.
type Deps struct {
	Fetcher  *fetcher.Client
	Renderer Renderer
	Logger   logger.Interface
}

// NewStrategy builds the strategy selected by the provider configuration.
func NewStrategy(cfg *domain.ProviderConfig, deps Deps) (Strategy, error) {
	switch cfg.DiscoveryStrategy {
	case domain.DiscoveryStatic:
		return NewStaticStrategy(deps.Logger), nil
	case domain.DiscoveryDynamic:
		if deps.Renderer == nil {
			return nil, fmt.Errorf("%w: dynamic strategy requires a renderer", ErrUnknownStrategy)
		}
		return NewDynamicStrategy(deps.Renderer, deps.Logger), nil
	case domain.DiscoveryAPI:
		return NewAPIStrategy(deps.Fetcher, deps.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.DiscoveryStrategy)
	}
}

// normalizeCandidate validates a discovered link: it must be absolute and
// stay on the provider's host. Plain http links are upgraded to https;
// anything else is rejected.
func normalizeCandidate(raw, allowedHost string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", false
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		parsed.Scheme = "https"
	default:
		return "", false
	}

	if !strings.EqualFold(parsed.Host, allowedHost) {
		return "", false
	}

	parsed.Fragment = ""
	return parsed.String(), true
}

// resolveRef resolves a possibly-relative href against the page it was
// found on. Returns the href unchanged when either side fails to parse;
// normalizeCandidate rejects it downstream.
func resolveRef(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// hostOf extracts the host of a root URL for same-host filtering.
func hostOf(rootURL string) (string, error) {
	parsed, err := url.Parse(rootURL)
	if err != nil {
		return "", fmt.Errorf("parse root url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("root url %q has no host", rootURL)
	}
	return parsed.Host, nil
}
