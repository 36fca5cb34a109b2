package fingerprint_test

import (
	"context"
	"strings"
	"testing"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/fingerprint"
)

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	a := fingerprint.Generate("https://example.com/r/1", "Pancakes", "Fluffy breakfast pancakes")
	b := fingerprint.Generate("https://example.com/r/1", "Pancakes", "Fluffy breakfast pancakes")
	if a != b {
		t.Fatalf("expected identical hashes: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256, got %q", a)
	}
}

func TestGenerate_NormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	a := fingerprint.Generate("https://example.com/r/1", "Pancakes", "Fluffy")
	b := fingerprint.Generate("  HTTPS://EXAMPLE.COM/r/1 ", " pancakes ", "FLUFFY")
	if a != b {
		t.Fatal("expected normalization to make hashes equal")
	}
}

func TestGenerate_DescriptionPrefixOnly(t *testing.T) {
	t.Parallel()

	prefix := strings.Repeat("x", fingerprint.DescriptionPrefixLen)
	a := fingerprint.Generate("https://example.com/r/1", "t", prefix+"tail one")
	b := fingerprint.Generate("https://example.com/r/1", "t", prefix+"another tail")
	if a != b {
		t.Fatal("content beyond the description prefix must not affect the hash")
	}

	c := fingerprint.Generate("https://example.com/r/1", "t", "different"+prefix)
	if a == c {
		t.Fatal("content within the prefix must affect the hash")
	}
}

func TestGenerate_MultiByteDescriptionPrefix(t *testing.T) {
	t.Parallel()

	// The prefix is counted in characters, not bytes: 200 two-byte runes
	// exceed 200 bytes but must all land inside the prefix.
	prefix := strings.Repeat("é", fingerprint.DescriptionPrefixLen)
	a := fingerprint.Generate("https://example.com/r/1", "t", prefix+"tail one")
	b := fingerprint.Generate("https://example.com/r/1", "t", prefix+"another tail")
	if a != b {
		t.Fatal("content beyond the character prefix must not affect the hash")
	}

	c := fingerprint.Generate("https://example.com/r/1", "t", "ü"+prefix)
	if a == c {
		t.Fatal("content within the character prefix must affect the hash")
	}

	// 101 characters but over 200 bytes: nothing may be cut off, so the
	// trailing character still distinguishes the two descriptions.
	short := strings.Repeat("é", 100)
	d := fingerprint.Generate("https://example.com/r/1", "t", short+"a")
	e := fingerprint.Generate("https://example.com/r/1", "t", short+"b")
	if d == e {
		t.Fatal("descriptions under the character prefix must hash in full")
	}
}

func TestGenerate_FieldBoundaries(t *testing.T) {
	t.Parallel()

	// "ab"+"c" and "a"+"bc" must not collide across field boundaries.
	a := fingerprint.Generate("https://example.com/ab", "c", "")
	b := fingerprint.Generate("https://example.com/a", "bc", "")
	if a == b {
		t.Fatal("expected distinct hashes for shifted field boundaries")
	}
}

type fakeRepo struct {
	existing map[string]bool
	saved    []*domain.Fingerprint
}

func (f *fakeRepo) Save(_ context.Context, fp *domain.Fingerprint) error {
	f.saved = append(f.saved, fp)
	return nil
}

func (f *fakeRepo) SaveBatch(_ context.Context, fps []*domain.Fingerprint) error {
	f.saved = append(f.saved, fps...)
	return nil
}

func (f *fakeRepo) ExistsByHash(_ context.Context, providerID, hash string) (bool, error) {
	return f.existing[providerID+"/"+hash], nil
}

func TestStore_IsDuplicate(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{existing: map[string]bool{"p1/known": true}}
	store := fingerprint.NewStore(repo)
	ctx := context.Background()

	dup, err := store.IsDuplicate(ctx, "p1", "known")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Fatal("expected known hash to be a duplicate")
	}

	// The same hash under another provider is not a duplicate.
	dup, err = store.IsDuplicate(ctx, "p2", "known")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if dup {
		t.Fatal("hashes must be namespaced per provider")
	}
}

func TestStore_RecordBatch(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{existing: map[string]bool{}}
	store := fingerprint.NewStore(repo)

	fps := []*domain.Fingerprint{
		{Hash: "h1", ProviderID: "p1", SourceURL: "https://example.com/1", RecipeID: "r1"},
		{Hash: "h2", ProviderID: "p1", SourceURL: "https://example.com/2", RecipeID: "r2"},
	}
	if err := store.RecordBatch(context.Background(), fps); err != nil {
		t.Fatalf("RecordBatch() error = %v", err)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected 2 saved fingerprints, got %d", len(repo.saved))
	}
}
