package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// RecipeIngredient is one ingredient line on a persisted recipe.
// CanonicalForm is nil when no mapping existed at ingestion time.
type RecipeIngredient struct {
	Code          string  `json:"code"`
	CanonicalForm *string `json:"canonical_form,omitempty"`
	Quantity      string  `json:"quantity,omitempty"`
}

// RecipeIngredientList stores ingredient lines as a JSONB array.
type RecipeIngredientList []RecipeIngredient

// Scan implements the sql.Scanner interface.
func (l *RecipeIngredientList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		*l = RecipeIngredientList{}
		return nil
	}

	return json.Unmarshal(data, l)
}

// Value implements the driver.Valuer interface.
func (l RecipeIngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Recipe is the final persisted recipe record.
type Recipe struct {
	ID          string               `db:"id"           json:"id"`
	ProviderID  string               `db:"provider_id"  json:"provider_id"`
	BatchID     string               `db:"batch_id"     json:"batch_id"`
	URL         string               `db:"url"          json:"url"`
	Title       string               `db:"title"        json:"title"`
	Description string               `db:"description"  json:"description,omitempty"`
	Ingredients RecipeIngredientList `db:"ingredients"  json:"ingredients"`
	Steps       StringSlice          `db:"steps"        json:"steps"`
	CreatedAt   time.Time            `db:"created_at"   json:"created_at"`
}

// DraftIngredient is one raw ingredient line as produced by an extractor,
// before normalization.
type DraftIngredient struct {
	Code     string `json:"code"`
	Quantity string `json:"quantity,omitempty"`
}

// RecipeDraft is the extractor's output for one fetched page. Drafts carry
// provider-specific ingredient codes; the normalizer resolves them to
// canonical forms before the recipe is persisted.
type RecipeDraft struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Ingredients []DraftIngredient `json:"ingredients"`
	Steps       []string          `json:"steps"`
}
