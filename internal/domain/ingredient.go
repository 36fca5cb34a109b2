package domain

import (
	"time"
)

// IngredientMapping is a provider-scoped normalization entry mapping a
// provider-specific ingredient code to its canonical form. A nil
// CanonicalForm denotes a known-but-unmapped code awaiting curation.
// (ProviderID, Code) is unique. Mappings are curated out-of-band and are
// read-only from the orchestrator's perspective.
type IngredientMapping struct {
	ProviderID    string    `db:"provider_id"    json:"provider_id"`
	Code          string    `db:"code"           json:"code"`
	CanonicalForm *string   `db:"canonical_form" json:"canonical_form,omitempty"`
	Notes         string    `db:"notes"          json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}
