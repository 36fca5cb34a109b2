package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrMappingNotFound is returned when no mapping exists for a provider code.
var ErrMappingNotFound = errors.New("ingredient mapping not found")

// mappingSelectColumns lists columns for SELECT queries on ingredient_mappings.
const mappingSelectColumns = `provider_id, code, canonical_form, notes,
	created_at, updated_at`

// IngredientMappingRepository handles database operations for ingredient
// normalization entries. Mappings are curated out-of-band; the harvester
// only reads them (Save exists for the curation tooling boundary).
type IngredientMappingRepository struct {
	db *sqlx.DB
}

// NewIngredientMappingRepository creates a new ingredient mapping repository.
func NewIngredientMappingRepository(db *sqlx.DB) *IngredientMappingRepository {
	return &IngredientMappingRepository{db: db}
}

// GetByCode retrieves the mapping for one provider code.
func (r *IngredientMappingRepository) GetByCode(ctx context.Context, providerID, code string) (*domain.IngredientMapping, error) {
	var mapping domain.IngredientMapping
	query := `SELECT ` + mappingSelectColumns + ` FROM ingredient_mappings WHERE provider_id = $1 AND code = $2`

	err := r.db.GetContext(ctx, &mapping, query, providerID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrMappingNotFound, providerID, code)
		}
		return nil, fmt.Errorf("failed to get ingredient mapping: %w", err)
	}

	return &mapping, nil
}

// GetByCodes retrieves mappings for a set of provider codes in one grouped
// lookup. Codes with no mapping row are simply absent from the result.
func (r *IngredientMappingRepository) GetByCodes(ctx context.Context, providerID string, codes []string) ([]*domain.IngredientMapping, error) {
	if len(codes) == 0 {
		return []*domain.IngredientMapping{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+mappingSelectColumns+` FROM ingredient_mappings WHERE provider_id = ? AND code IN (?)`,
		providerID, codes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapping query: %w", err)
	}

	var mappings []*domain.IngredientMapping
	if selectErr := r.db.SelectContext(ctx, &mappings, r.db.Rebind(query), args...); selectErr != nil {
		return nil, fmt.Errorf("failed to get ingredient mappings: %w", selectErr)
	}

	if mappings == nil {
		mappings = []*domain.IngredientMapping{}
	}

	return mappings, nil
}

// GetAllForProvider retrieves every mapping for a provider.
func (r *IngredientMappingRepository) GetAllForProvider(ctx context.Context, providerID string) ([]*domain.IngredientMapping, error) {
	var mappings []*domain.IngredientMapping
	query := `SELECT ` + mappingSelectColumns + ` FROM ingredient_mappings WHERE provider_id = $1 ORDER BY code ASC`

	err := r.db.SelectContext(ctx, &mappings, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredient mappings: %w", err)
	}

	if mappings == nil {
		mappings = []*domain.IngredientMapping{}
	}

	return mappings, nil
}

// Save inserts or updates a mapping keyed by (provider_id, code).
func (r *IngredientMappingRepository) Save(ctx context.Context, mapping *domain.IngredientMapping) error {
	query := `
		INSERT INTO ingredient_mappings (provider_id, code, canonical_form, notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id, code) DO UPDATE SET
			canonical_form = EXCLUDED.canonical_form,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, mapping.ProviderID, mapping.Code, mapping.CanonicalForm, mapping.Notes)
	if err != nil {
		return fmt.Errorf("failed to save ingredient mapping: %w", err)
	}

	return nil
}
