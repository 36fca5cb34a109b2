package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/domain"
)

// ErrRecipeNotFound is returned when no recipe exists for a URL.
var ErrRecipeNotFound = errors.New("recipe not found")

// recipeSelectColumns lists columns for SELECT queries on recipes.
const recipeSelectColumns = `id, provider_id, batch_id, url, title,
	description, ingredients, steps, created_at`

// RecipeRepository handles database operations for persisted recipes.
type RecipeRepository struct {
	db *sqlx.DB
}

// NewRecipeRepository creates a new recipe repository.
func NewRecipeRepository(db *sqlx.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Save inserts a single recipe.
func (r *RecipeRepository) Save(ctx context.Context, recipe *domain.Recipe) error {
	query := `
		INSERT INTO recipes (id, provider_id, batch_id, url, title, description, ingredients, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		recipe.ID,
		recipe.ProviderID,
		recipe.BatchID,
		recipe.URL,
		recipe.Title,
		recipe.Description,
		recipe.Ingredients,
		recipe.Steps,
	).Scan(&recipe.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}

	return nil
}

// SaveBatch inserts recipes in a single transaction.
func (r *RecipeRepository) SaveBatch(ctx context.Context, recipes []*domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO recipes (id, provider_id, batch_id, url, title, description, ingredients, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	for _, recipe := range recipes {
		_, execErr := tx.ExecContext(
			ctx,
			query,
			recipe.ID,
			recipe.ProviderID,
			recipe.BatchID,
			recipe.URL,
			recipe.Title,
			recipe.Description,
			recipe.Ingredients,
			recipe.Steps,
		)
		if execErr != nil {
			return fmt.Errorf("failed to save recipe %s: %w", recipe.ID, execErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit recipes: %w", commitErr)
	}

	return nil
}

// GetByURL retrieves a recipe by its source URL.
func (r *RecipeRepository) GetByURL(ctx context.Context, url string) (*domain.Recipe, error) {
	var recipe domain.Recipe
	query := `SELECT ` + recipeSelectColumns + ` FROM recipes WHERE url = $1`

	err := r.db.GetContext(ctx, &recipe, query, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, url)
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	return &recipe, nil
}
