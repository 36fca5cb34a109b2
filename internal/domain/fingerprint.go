package domain

import (
	"time"
)

// Fingerprint is one content-identity record used for duplicate detection.
// The hash is derived from the normalized URL, title and a fixed prefix of
// the description, so superficial URL changes across site redesigns do not
// cause re-ingestion. Hashes are unique within a provider namespace.
//
// A fingerprint is written only after the linked recipe has been persisted
// successfully; writing it earlier would create false "already processed"
// records when persistence fails.
type Fingerprint struct {
	Hash       string    `db:"hash"        json:"hash"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	SourceURL  string    `db:"source_url"  json:"source_url"`
	RecipeID   string    `db:"recipe_id"   json:"recipe_id"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
