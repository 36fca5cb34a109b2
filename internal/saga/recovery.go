package saga

import (
	"context"
	"fmt"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/logger"
)

// SagaLister finds interrupted sagas.
type SagaLister interface {
	ListNonTerminal(ctx context.Context) ([]*domain.SagaState, error)
}

// Resumer drives a single saga to a terminal state.
type Resumer interface {
	Resume(ctx context.Context, state *domain.SagaState) error
}

// Recovery resumes sagas that were interrupted by a process death. It
// runs at startup, before any new batches are accepted.
type Recovery struct {
	sagas SagaLister
	orch  Resumer
	log   logger.Interface
}

// NewRecovery constructs a Recovery.
func NewRecovery(sagas SagaLister, orch Resumer, log logger.Interface) *Recovery {
	return &Recovery{sagas: sagas, orch: orch, log: log.WithComponent("recovery")}
}

// ResumeAll resumes every non-terminal saga in creation order. A saga
// that fails to resume is logged and left for the next startup; it never
// blocks the others.
func (r *Recovery) ResumeAll(ctx context.Context) error {
	states, err := r.sagas.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("failed to list interrupted batches: %w", err)
	}
	if len(states) == 0 {
		return nil
	}

	r.log.Info("resuming interrupted batches", "count", len(states))
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog := r.log.WithBatch(state.CorrelationID).WithProvider(state.ProviderID)
		if err := r.orch.Resume(ctx, state); err != nil {
			slog.WithError(err).Error("failed to resume batch")
			continue
		}
		slog.Info("interrupted batch reached terminal state")
	}
	return nil
}
