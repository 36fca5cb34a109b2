package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrSagaNotFound is returned when no saga state exists for a correlation id.
var ErrSagaNotFound = errors.New("saga state not found")

// sagaSelectColumns lists columns for SELECT queries on saga_states.
const sagaSelectColumns = `correlation_id, provider_id, current_phase,
	discovered_urls, fingerprinted_urls, processed_urls, failed_urls,
	current_index, error_message, created_at, started_at, updated_at,
	completed_at`

// SagaRepository handles database operations for saga checkpoints.
// Save is an upsert: the orchestrator persists the same state row after
// every transition and every processed item.
type SagaRepository struct {
	db *sqlx.DB
}

// NewSagaRepository creates a new saga state repository.
func NewSagaRepository(db *sqlx.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

// Save inserts or updates a saga state keyed by correlation id.
func (r *SagaRepository) Save(ctx context.Context, state *domain.SagaState) error {
	query := `
		INSERT INTO saga_states (correlation_id, provider_id, current_phase,
			discovered_urls, fingerprinted_urls, processed_urls, failed_urls,
			current_index, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (correlation_id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			discovered_urls = EXCLUDED.discovered_urls,
			fingerprinted_urls = EXCLUDED.fingerprinted_urls,
			processed_urls = EXCLUDED.processed_urls,
			failed_urls = EXCLUDED.failed_urls,
			current_index = EXCLUDED.current_index,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		state.CorrelationID,
		state.ProviderID,
		state.CurrentPhase,
		state.DiscoveredURLs,
		state.FingerprintedURLs,
		state.ProcessedURLs,
		state.FailedURLs,
		state.CurrentIndex,
		state.ErrorMessage,
		state.StartedAt,
		state.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save saga state: %w", err)
	}

	return nil
}

// GetByCorrelationID retrieves the saga state for a batch.
func (r *SagaRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.SagaState, error) {
	var state domain.SagaState
	query := `SELECT ` + sagaSelectColumns + ` FROM saga_states WHERE correlation_id = $1`

	err := r.db.GetContext(ctx, &state, query, correlationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSagaNotFound, correlationID)
		}
		return nil, fmt.Errorf("failed to get saga state: %w", err)
	}

	return &state, nil
}

// ListNonTerminal returns all saga states that have not reached a terminal
// phase, oldest first. Used by crash recovery on startup.
func (r *SagaRepository) ListNonTerminal(ctx context.Context) ([]*domain.SagaState, error) {
	var states []*domain.SagaState
	query := `
		SELECT ` + sagaSelectColumns + `
		FROM saga_states
		WHERE current_phase NOT IN ($1, $2)
		ORDER BY created_at ASC
	`

	err := r.db.SelectContext(ctx, &states, query,
		domain.PhaseCompleted, domain.PhaseFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list non-terminal saga states: %w", err)
	}

	if states == nil {
		states = []*domain.SagaState{}
	}

	return states, nil
}
