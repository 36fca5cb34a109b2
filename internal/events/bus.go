package events

import (
	"context"
	"sync"

	"github.com/chefstream/harvester/internal/logger"
)

// Bus distributes batch lifecycle events to subscribed handlers.
// Publishing is synchronous and in-process; handler errors are logged and
// never returned to the publisher, so a misbehaving observer cannot stall
// a batch.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   logger.Interface
}

// NewBus creates a new event bus.
func NewBus(log logger.Interface) *Bus {
	return &Bus{
		handlers: make([]Handler, 0),
		logger:   log,
	}
}

// Subscribe adds an event handler to the bus.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// PublishBatchStarted publishes a BatchStarted event to all handlers.
func (b *Bus) PublishBatchStarted(ctx context.Context, event BatchStarted) {
	for _, handler := range b.snapshot() {
		if err := handler.HandleBatchStarted(ctx, event); err != nil {
			b.logHandlerError("batch started", err)
		}
	}
}

// PublishBatchCompleted publishes a BatchCompleted event to all handlers.
func (b *Bus) PublishBatchCompleted(ctx context.Context, event BatchCompleted) {
	for _, handler := range b.snapshot() {
		if err := handler.HandleBatchCompleted(ctx, event); err != nil {
			b.logHandlerError("batch completed", err)
		}
	}
}

// PublishRecipeProcessed publishes a RecipeProcessed event to all handlers.
func (b *Bus) PublishRecipeProcessed(ctx context.Context, event RecipeProcessed) {
	for _, handler := range b.snapshot() {
		if err := handler.HandleRecipeProcessed(ctx, event); err != nil {
			b.logHandlerError("recipe processed", err)
		}
	}
}

// PublishProcessingError publishes a ProcessingError event to all handlers.
func (b *Bus) PublishProcessingError(ctx context.Context, event ProcessingError) {
	for _, handler := range b.snapshot() {
		if err := handler.HandleProcessingError(ctx, event); err != nil {
			b.logHandlerError("processing error", err)
		}
	}
}

// PublishMappingMissing publishes an IngredientMappingMissing event to all
// handlers.
func (b *Bus) PublishMappingMissing(ctx context.Context, event IngredientMappingMissing) {
	for _, handler := range b.snapshot() {
		if err := handler.HandleMappingMissing(ctx, event); err != nil {
			b.logHandlerError("mapping missing", err)
		}
	}
}

// snapshot copies the handler list under read lock so dispatch happens
// without holding it.
func (b *Bus) snapshot() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	return handlers
}

// logHandlerError reports a handler failure without propagating it.
func (b *Bus) logHandlerError(event string, err error) {
	b.logger.Error("Event handler failed",
		"event", event,
		"error", err,
	)
}
