package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrBatchNotFound is returned when a batch does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// batchSelectColumns lists columns for SELECT queries on batches.
const batchSelectColumns = `id, provider_id, max_item_count, max_duration_ms,
	status, started_at, completed_at, processed_count, skipped_count,
	failed_count, processed_urls, failed_urls, created_at, updated_at`

// BatchRepository handles database operations for ingestion batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch into the database.
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	query := `
		INSERT INTO batches (id, provider_id, max_item_count, max_duration_ms,
			status, started_at, processed_urls, failed_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		batch.ID,
		batch.ProviderID,
		batch.MaxItemCount,
		batch.MaxDurationMs,
		batch.Status,
		batch.StartedAt,
		batch.ProcessedURLs,
		batch.FailedURLs,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

// Save updates an existing batch.
func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	query := `
		UPDATE batches
		SET status = $1, completed_at = $2, processed_count = $3,
			skipped_count = $4, failed_count = $5, processed_urls = $6,
			failed_urls = $7, updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		batch.Status,
		batch.CompletedAt,
		batch.ProcessedCount,
		batch.SkippedCount,
		batch.FailedCount,
		batch.ProcessedURLs,
		batch.FailedURLs,
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	return execRequireRows(result, nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batch.ID))
}

// GetByID retrieves a batch by its ID.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT ` + batchSelectColumns + ` FROM batches WHERE id = $1`

	err := r.db.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return &batch, nil
}

// GetActiveForProvider returns the current non-terminal batch for a
// provider, or nil when none is active.
func (r *BatchRepository) GetActiveForProvider(ctx context.Context, providerID string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `
		SELECT ` + batchSelectColumns + `
		FROM batches
		WHERE provider_id = $1 AND status IN ($2, $3)
		ORDER BY started_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &batch, query, providerID,
		domain.BatchStatusPending, domain.BatchStatusInProgress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active batch: %w", err)
	}

	return &batch, nil
}
