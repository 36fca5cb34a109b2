// Package normalizer resolves provider-specific ingredient codes to their
// canonical forms. A bounded LRU+TTL cache sits in front of the mapping
// repository; unmapped codes resolve to nil and publish a mapping-missing
// signal instead of failing, so normalization gaps never halt a batch.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chefstream/harvester/internal/database"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/events"
	"github.com/chefstream/harvester/internal/logger"
)

// Default cache bounds, used when the configuration supplies none.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 15 * time.Minute
)

// Repository is the lookup surface the normalizer needs.
type Repository interface {
	GetByCode(ctx context.Context, providerID, code string) (*domain.IngredientMapping, error)
	GetByCodes(ctx context.Context, providerID string, codes []string) ([]*domain.IngredientMapping, error)
}

// Publisher emits the mapping-missing signal for curators.
type Publisher interface {
	PublishMappingMissing(ctx context.Context, event events.IngredientMappingMissing)
}

// Normalizer performs cached code-to-canonical-form lookups.
type Normalizer struct {
	repo   Repository
	bus    Publisher
	cache  *mappingCache
	logger logger.Interface
}

// Options configure the normalizer cache bounds.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// New creates a normalizer in front of the given mapping repository.
func New(repo Repository, bus Publisher, log logger.Interface, opts Options) *Normalizer {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	return &Normalizer{
		repo:   repo,
		bus:    bus,
		cache:  newMappingCache(opts.CacheSize, opts.CacheTTL),
		logger: log.WithComponent("normalizer"),
	}
}

// Normalize resolves one provider code. A nil result means the code has no
// canonical form; when no mapping row exists at all, a mapping-missing
// event is published (non-blocking) so curators can add one. recipeURL is
// carried on the event for context and may be empty.
func (n *Normalizer) Normalize(ctx context.Context, providerID, code, recipeURL string) (*string, error) {
	key := cacheKey(providerID, code)

	if canonical, _, ok := n.cache.get(key); ok {
		return canonical, nil
	}

	mapping, err := n.repo.GetByCode(ctx, providerID, code)
	if err != nil {
		if isNotFound(err) {
			n.cache.put(key, nil, false)
			n.reportMissing(ctx, providerID, code, recipeURL)
			return nil, nil
		}
		return nil, fmt.Errorf("normalize %s/%s: %w", providerID, code, err)
	}

	n.cache.put(key, mapping.CanonicalForm, true)
	return mapping.CanonicalForm, nil
}

// NormalizeBatch resolves a set of codes with a single grouped lookup for
// the cache misses. The result maps every requested code; unmapped codes
// map to nil.
func (n *Normalizer) NormalizeBatch(ctx context.Context, providerID string, codes []string, recipeURL string) (map[string]*string, error) {
	result := make(map[string]*string, len(codes))
	var misses []string

	for _, code := range codes {
		if _, dup := result[code]; dup {
			continue
		}
		if canonical, _, ok := n.cache.get(cacheKey(providerID, code)); ok {
			result[code] = canonical
			continue
		}
		result[code] = nil
		misses = append(misses, code)
	}

	if len(misses) == 0 {
		return result, nil
	}

	mappings, err := n.repo.GetByCodes(ctx, providerID, misses)
	if err != nil {
		return nil, fmt.Errorf("normalize batch for %s: %w", providerID, err)
	}

	found := make(map[string]struct{}, len(mappings))
	for _, mapping := range mappings {
		result[mapping.Code] = mapping.CanonicalForm
		found[mapping.Code] = struct{}{}
		n.cache.put(cacheKey(providerID, mapping.Code), mapping.CanonicalForm, true)
	}

	for _, code := range misses {
		if _, ok := found[code]; ok {
			continue
		}
		n.cache.put(cacheKey(providerID, code), nil, false)
		n.reportMissing(ctx, providerID, code, recipeURL)
	}

	return result, nil
}

// reportMissing publishes the mapping-missing signal.
func (n *Normalizer) reportMissing(ctx context.Context, providerID, code, recipeURL string) {
	if n.bus == nil {
		return
	}
	n.bus.PublishMappingMissing(ctx, events.IngredientMappingMissing{
		ProviderID: providerID,
		Code:       code,
		RecipeURL:  recipeURL,
	})
}

// isNotFound reports whether a lookup error means the mapping row is absent.
func isNotFound(err error) bool {
	return errors.Is(err, database.ErrMappingNotFound)
}

// cacheKey builds the provider-scoped cache key for a code.
func cacheKey(providerID, code string) string {
	return providerID + "/" + code
}
