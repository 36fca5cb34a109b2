package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/logger"
)

// defaultStaticDepth bounds listing-page recursion when the provider
// configuration does not set one.
const defaultStaticDepth = 2

// staticUserAgent identifies static discovery requests. Item fetches use
// the rotating pool in the fetcher package; discovery traffic is a handful
// of listing pages per run.
const staticUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// StaticStrategy discovers URLs by fetching listing pages and extracting
// links, following same-host links up to the configured depth.
type StaticStrategy struct {
	logger logger.Interface
}

// NewStaticStrategy creates a static discovery strategy.
func NewStaticStrategy(log logger.Interface) *StaticStrategy {
	return &StaticStrategy{logger: log.WithComponent("discovery.static")}
}

// Discover crawls listing pages starting at the root URL.
func (s *StaticStrategy) Discover(ctx context.Context, req Request) ([]DiscoveredURL, error) {
	host, err := hostOf(req.RootURL)
	if err != nil {
		return nil, &Error{ProviderID: req.ProviderID, Strategy: domain.DiscoveryStatic, Err: err}
	}

	depth := req.MaxDepth
	if depth <= 0 {
		depth = defaultStaticDepth
	}

	// colly matches allowed domains against the hostname, without port.
	hostname := host
	if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
		hostname = h
	}

	collector := colly.NewCollector(
		colly.MaxDepth(depth),
		colly.AllowedDomains(hostname),
		colly.UserAgent(staticUserAgent),
	)

	var (
		mu       sync.Mutex
		found    []DiscoveredURL
		seen     = make(map[string]struct{})
		firstErr *Error
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		full := len(found) >= req.MaxCount
		mu.Unlock()
		if full && r.URL.String() != req.RootURL {
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		candidate, ok := normalizeCandidate(link, host)
		if !ok || candidate == req.RootURL {
			return
		}

		mu.Lock()
		if _, dup := seen[candidate]; !dup && len(found) < req.MaxCount {
			seen[candidate] = struct{}{}
			found = append(found, DiscoveredURL{
				URL:   candidate,
				Title: strings.TrimSpace(e.Text),
			})
		}
		full := len(found) >= req.MaxCount
		mu.Unlock()

		if !full {
			_ = e.Request.Visit(link)
		}
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return
		}
		firstErr = &Error{
			ProviderID: req.ProviderID,
			Strategy:   domain.DiscoveryStatic,
			Err:        fmt.Errorf("visit %s: %w", r.Request.URL, visitErr),
			Transient:  transientStatus(r.StatusCode),
		}
	})

	if visitErr := collector.Visit(req.RootURL); visitErr != nil {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, &Error{
			ProviderID: req.ProviderID,
			Strategy:   domain.DiscoveryStatic,
			Err:        visitErr,
			Transient:  true,
		}
	}
	collector.Wait()

	mu.Lock()
	defer mu.Unlock()

	if len(found) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if firstErr != nil {
		s.logger.Warn("Partial discovery result",
			"provider_id", req.ProviderID,
			"found", len(found),
			"error", firstErr,
		)
	}

	return found, nil
}

// transientStatus classifies an HTTP status for retry purposes. A zero
// status means the request never completed (network failure).
func transientStatus(status int) bool {
	return status == 0 ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
