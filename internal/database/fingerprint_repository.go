package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrFingerprintNotFound is returned when no fingerprint exists for a URL.
var ErrFingerprintNotFound = errors.New("fingerprint not found")

// FingerprintRepository handles database operations for content fingerprints.
// Fingerprints are append-only: they are never mutated or deleted by normal
// operation.
type FingerprintRepository struct {
	db *sqlx.DB
}

// NewFingerprintRepository creates a new fingerprint repository.
func NewFingerprintRepository(db *sqlx.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// Save inserts a single fingerprint.
func (r *FingerprintRepository) Save(ctx context.Context, fp *domain.Fingerprint) error {
	query := `
		INSERT INTO fingerprints (hash, provider_id, source_url, recipe_id)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, fp.Hash, fp.ProviderID, fp.SourceURL, fp.RecipeID)
	if err != nil {
		return fmt.Errorf("failed to save fingerprint: %w", err)
	}

	return nil
}

// SaveBatch inserts fingerprints in a single transaction. Used by the
// persisting phase to write a run's fingerprints together with its recipes.
func (r *FingerprintRepository) SaveBatch(ctx context.Context, fps []*domain.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO fingerprints (hash, provider_id, source_url, recipe_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id, hash) DO NOTHING
	`

	for _, fp := range fps {
		if _, execErr := tx.ExecContext(ctx, query, fp.Hash, fp.ProviderID, fp.SourceURL, fp.RecipeID); execErr != nil {
			return fmt.Errorf("failed to save fingerprint %s: %w", fp.Hash, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit fingerprints: %w", commitErr)
	}

	return nil
}

// ExistsByHash reports whether a fingerprint exists in the provider's
// namespace.
func (r *FingerprintRepository) ExistsByHash(ctx context.Context, providerID, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM fingerprints WHERE provider_id = $1 AND hash = $2)`

	err := r.db.GetContext(ctx, &exists, query, providerID, hash)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}

	return exists, nil
}

// GetByURL retrieves the fingerprint recorded for a source URL.
func (r *FingerprintRepository) GetByURL(ctx context.Context, sourceURL string) (*domain.Fingerprint, error) {
	var fp domain.Fingerprint
	query := `
		SELECT hash, provider_id, source_url, recipe_id, created_at
		FROM fingerprints
		WHERE source_url = $1
	`

	err := r.db.GetContext(ctx, &fp, query, sourceURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrFingerprintNotFound, sourceURL)
		}
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}

	return &fp, nil
}
