// Package events provides typed batch lifecycle notifications and an
// in-process event bus for distributing them to registered handlers.
package events

import (
	"context"
	"time"
)

// BatchStarted is published when a batch run begins.
type BatchStarted struct {
	BatchID    string    `json:"batch_id"`
	ProviderID string    `json:"provider_id"`
	StartedAt  time.Time `json:"started_at"`
}

// BatchCompleted is published when a batch reaches a terminal status.
type BatchCompleted struct {
	BatchID     string    `json:"batch_id"`
	ProviderID  string    `json:"provider_id"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// RecipeProcessed is published after each successfully processed recipe.
type RecipeProcessed struct {
	RecipeID   string `json:"recipe_id"`
	URL        string `json:"url"`
	ProviderID string `json:"provider_id"`
}

// ProcessingError is published when a URL permanently fails.
type ProcessingError struct {
	URL          string `json:"url"`
	ProviderID   string `json:"provider_id"`
	ErrorMessage string `json:"error_message"`
}

// IngredientMappingMissing is published when a provider code has no
// canonical mapping, so curators can add one. Publication is non-blocking
// for the batch.
type IngredientMappingMissing struct {
	ProviderID string `json:"provider_id"`
	Code       string `json:"code"`
	RecipeURL  string `json:"recipe_url,omitempty"`
}

// Handler reacts to batch lifecycle events. Handler errors are logged by
// the bus and never propagate to the publisher.
type Handler interface {
	HandleBatchStarted(ctx context.Context, event BatchStarted) error
	HandleBatchCompleted(ctx context.Context, event BatchCompleted) error
	HandleRecipeProcessed(ctx context.Context, event RecipeProcessed) error
	HandleProcessingError(ctx context.Context, event ProcessingError) error
	HandleMappingMissing(ctx context.Context, event IngredientMappingMissing) error
}
