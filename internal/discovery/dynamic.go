package discovery

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/logger"
)

// defaultDynamicDepth bounds rendered-page recursion when the provider
// configuration does not set one.
const defaultDynamicDepth = 2

// DynamicStrategy discovers URLs on script-rendered sites. Rendering is
// delegated to the external headless collaborator; link extraction and
// pagination-following happen here on the rendered HTML.
type DynamicStrategy struct {
	renderer Renderer
	logger   logger.Interface
}

// NewDynamicStrategy creates a dynamic discovery strategy.
func NewDynamicStrategy(renderer Renderer, log logger.Interface) *DynamicStrategy {
	return &DynamicStrategy{
		renderer: renderer,
		logger:   log.WithComponent("discovery.dynamic"),
	}
}

// page is one rendered page in the breadth-first walk.
type page struct {
	url   string
	depth int
}

// Discover renders pages breadth-first starting at the root URL, following
// same-host links up to the configured depth until MaxCount candidates are
// collected.
func (s *DynamicStrategy) Discover(ctx context.Context, req Request) ([]DiscoveredURL, error) {
	host, err := hostOf(req.RootURL)
	if err != nil {
		return nil, &Error{ProviderID: req.ProviderID, Strategy: domain.DiscoveryDynamic, Err: err}
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultDynamicDepth
	}

	var (
		found   []DiscoveredURL
		seen    = make(map[string]struct{})
		visited = make(map[string]struct{})
		queue   = []page{{url: req.RootURL, depth: 1}}
	)

	for len(queue) > 0 && len(found) < req.MaxCount {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{ProviderID: req.ProviderID, Strategy: domain.DiscoveryDynamic, Err: ctxErr, Transient: true}
		}

		current := queue[0]
		queue = queue[1:]

		if _, done := visited[current.url]; done {
			continue
		}
		visited[current.url] = struct{}{}

		rendered, renderErr := s.renderer.Render(ctx, current.url)
		if renderErr != nil {
			// The root page failing means discovery cannot proceed;
			// a deeper page failing only truncates the walk.
			if len(found) == 0 && len(visited) == 1 {
				return nil, &Error{
					ProviderID: req.ProviderID,
					Strategy:   domain.DiscoveryDynamic,
					Err:        fmt.Errorf("render %s: %w", current.url, renderErr),
					Transient:  true,
				}
			}
			s.logger.Warn("Render failed mid-walk",
				"provider_id", req.ProviderID,
				"url", current.url,
				"error", renderErr,
			)
			continue
		}

		doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(rendered))
		if parseErr != nil {
			return nil, &Error{
				ProviderID: req.ProviderID,
				Strategy:   domain.DiscoveryDynamic,
				Err:        fmt.Errorf("parse rendered page %s: %w", current.url, parseErr),
			}
		}

		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			candidate, ok := normalizeCandidate(resolveRef(current.url, href), host)
			if !ok || candidate == req.RootURL {
				return true
			}

			if _, dup := seen[candidate]; !dup {
				seen[candidate] = struct{}{}
				found = append(found, DiscoveredURL{
					URL:   candidate,
					Title: strings.TrimSpace(sel.Text()),
				})
				if current.depth < maxDepth {
					queue = append(queue, page{url: candidate, depth: current.depth + 1})
				}
			}

			return len(found) < req.MaxCount
		})
	}

	return found, nil
}
