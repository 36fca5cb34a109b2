// Package fingerprint provides content-based duplicate detection.
// Recipes are identified by a hash of their normalized URL, title and a
// fixed description prefix rather than by URL alone, because provider URLs
// are not stable across site redesigns while title and description content
// is a reasonable proxy for recipe identity.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chefstream/harvester/internal/domain"
)

// DescriptionPrefixLen is the number of description characters included in
// the hash input. Truncation keeps unrelated trailing content from producing
// spurious distinct fingerprints.
const DescriptionPrefixLen = 200

// inputSeparator joins the hash input fields. It cannot occur inside a URL,
// so "ab"+"c" and "a"+"bc" hash differently.
const inputSeparator = "\x1f"

// Generate computes the deterministic content hash for a recipe page.
// Inputs are lower-cased and trimmed so superficial variations (case,
// surrounding whitespace) do not change the hash.
func Generate(url, title, description string) string {
	desc := normalize(description)
	if utf8.RuneCountInString(desc) > DescriptionPrefixLen {
		// Truncate on a rune boundary so a multi-byte character is never
		// split mid-sequence.
		desc = string([]rune(desc)[:DescriptionPrefixLen])
	}

	input := normalize(url) + inputSeparator + normalize(title) + inputSeparator + desc
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// normalize lower-cases and trims a hash input field.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Repository is the persistence surface the store needs.
type Repository interface {
	Save(ctx context.Context, fp *domain.Fingerprint) error
	SaveBatch(ctx context.Context, fps []*domain.Fingerprint) error
	ExistsByHash(ctx context.Context, providerID, hash string) (bool, error)
}

// Store checks and records fingerprints against the persistent index.
type Store struct {
	repo Repository
}

// NewStore creates a fingerprint store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// IsDuplicate reports whether the hash already exists in the provider's
// namespace.
func (s *Store) IsDuplicate(ctx context.Context, providerID, hash string) (bool, error) {
	return s.repo.ExistsByHash(ctx, providerID, hash)
}

// Record stores a fingerprint linking a hash to a persisted recipe.
// Called only after the recipe write succeeded.
func (s *Store) Record(ctx context.Context, providerID, sourceURL, recipeID, hash string) error {
	return s.repo.Save(ctx, &domain.Fingerprint{
		Hash:       hash,
		ProviderID: providerID,
		SourceURL:  sourceURL,
		RecipeID:   recipeID,
		CreatedAt:  time.Now(),
	})
}

// RecordBatch stores a run's fingerprints together.
func (s *Store) RecordBatch(ctx context.Context, fps []*domain.Fingerprint) error {
	return s.repo.SaveBatch(ctx, fps)
}
