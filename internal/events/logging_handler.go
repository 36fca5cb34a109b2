package events

import (
	"context"

	"github.com/chefstream/harvester/internal/logger"
)

// LoggingHandler writes every batch lifecycle event to the structured log.
// It is the default observer wired by the CLI commands.
type LoggingHandler struct {
	logger logger.Interface
}

// NewLoggingHandler creates a handler that logs all events.
func NewLoggingHandler(log logger.Interface) *LoggingHandler {
	return &LoggingHandler{logger: log.WithComponent("events")}
}

// HandleBatchStarted logs a batch start.
func (h *LoggingHandler) HandleBatchStarted(ctx context.Context, event BatchStarted) error {
	h.logger.Info("Batch started",
		"batch_id", event.BatchID,
		"provider_id", event.ProviderID,
		"started_at", event.StartedAt,
	)
	return nil
}

// HandleBatchCompleted logs a batch completion with its final counts.
func (h *LoggingHandler) HandleBatchCompleted(ctx context.Context, event BatchCompleted) error {
	h.logger.Info("Batch completed",
		"batch_id", event.BatchID,
		"provider_id", event.ProviderID,
		"processed", event.Processed,
		"skipped", event.Skipped,
		"failed", event.Failed,
		"completed_at", event.CompletedAt,
	)
	return nil
}

// HandleRecipeProcessed logs a processed recipe.
func (h *LoggingHandler) HandleRecipeProcessed(ctx context.Context, event RecipeProcessed) error {
	h.logger.Debug("Recipe processed",
		"recipe_id", event.RecipeID,
		"url", event.URL,
		"provider_id", event.ProviderID,
	)
	return nil
}

// HandleProcessingError logs a permanent per-URL failure.
func (h *LoggingHandler) HandleProcessingError(ctx context.Context, event ProcessingError) error {
	h.logger.Warn("Processing error",
		"url", event.URL,
		"provider_id", event.ProviderID,
		"error_message", event.ErrorMessage,
	)
	return nil
}

// HandleMappingMissing logs an unmapped ingredient code for curators.
func (h *LoggingHandler) HandleMappingMissing(ctx context.Context, event IngredientMappingMissing) error {
	h.logger.Warn("Ingredient mapping missing",
		"provider_id", event.ProviderID,
		"code", event.Code,
		"recipe_url", event.RecipeURL,
	)
	return nil
}
