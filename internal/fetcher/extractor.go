package fetcher

import (
	"context"

	"github.com/chefstream/harvester/internal/domain"
)

// ExtractContext carries provider context into an extraction call.
type ExtractContext struct {
	ProviderID string
	URL        string
}

// Extractor turns raw fetched content into a recipe draft. Concrete
// provider-specific extraction lives outside this module; the orchestrator
// only depends on this port. Implementations must return a permanent,
// descriptive error for content they cannot parse.
type Extractor interface {
	Extract(ctx context.Context, raw []byte, ectx ExtractContext) (*domain.RecipeDraft, error)
}
