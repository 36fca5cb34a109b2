package normalizer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefstream/harvester/internal/database"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/events"
	"github.com/chefstream/harvester/internal/logger"
	"github.com/chefstream/harvester/internal/normalizer"
)

type fakeMappingRepo struct {
	mappings    map[string]*domain.IngredientMapping // key: provider/code
	codeCalls   int
	batchCalls  int
	lastBatch   []string
	lookupError error
}

func (f *fakeMappingRepo) GetByCode(_ context.Context, providerID, code string) (*domain.IngredientMapping, error) {
	f.codeCalls++
	if f.lookupError != nil {
		return nil, f.lookupError
	}
	m, ok := f.mappings[providerID+"/"+code]
	if !ok {
		return nil, database.ErrMappingNotFound
	}
	return m, nil
}

func (f *fakeMappingRepo) GetByCodes(_ context.Context, providerID string, codes []string) ([]*domain.IngredientMapping, error) {
	f.batchCalls++
	f.lastBatch = codes
	if f.lookupError != nil {
		return nil, f.lookupError
	}
	var out []*domain.IngredientMapping
	for _, code := range codes {
		if m, ok := f.mappings[providerID+"/"+code]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type capturingPublisher struct {
	missing []events.IngredientMappingMissing
}

func (p *capturingPublisher) PublishMappingMissing(_ context.Context, event events.IngredientMappingMissing) {
	p.missing = append(p.missing, event)
}

func strPtr(s string) *string { return &s }

func newTestNormalizer(repo *fakeMappingRepo, bus *capturingPublisher, opts normalizer.Options) *normalizer.Normalizer {
	return normalizer.New(repo, bus, logger.NewNoOp(), opts)
}

func TestNormalize_MappedCode(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/FLR-01": {ProviderID: "p1", Code: "FLR-01", CanonicalForm: strPtr("wheat flour")},
	}}
	bus := &capturingPublisher{}
	n := newTestNormalizer(repo, bus, normalizer.Options{})

	canonical, err := n.Normalize(context.Background(), "p1", "FLR-01", "")
	require.NoError(t, err)
	require.NotNil(t, canonical)
	assert.Equal(t, "wheat flour", *canonical)
	assert.Empty(t, bus.missing)
}

func TestNormalize_UnmappedCodeIsNotAnError(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{}}
	bus := &capturingPublisher{}
	n := newTestNormalizer(repo, bus, normalizer.Options{})

	canonical, err := n.Normalize(context.Background(), "p1", "UNKNOWN", "https://example.com/r/1")
	require.NoError(t, err)
	assert.Nil(t, canonical)

	require.Len(t, bus.missing, 1)
	assert.Equal(t, "p1", bus.missing[0].ProviderID)
	assert.Equal(t, "UNKNOWN", bus.missing[0].Code)
	assert.Equal(t, "https://example.com/r/1", bus.missing[0].RecipeURL)
}

func TestNormalize_KnownButUnmappedDoesNotSignal(t *testing.T) {
	t.Parallel()

	// A row exists but has no canonical form yet; curators already know.
	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/PENDING": {ProviderID: "p1", Code: "PENDING", CanonicalForm: nil},
	}}
	bus := &capturingPublisher{}
	n := newTestNormalizer(repo, bus, normalizer.Options{})

	canonical, err := n.Normalize(context.Background(), "p1", "PENDING", "")
	require.NoError(t, err)
	assert.Nil(t, canonical)
	assert.Empty(t, bus.missing)
}

func TestNormalize_CacheAvoidsRepeatLookups(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/FLR-01": {ProviderID: "p1", Code: "FLR-01", CanonicalForm: strPtr("wheat flour")},
	}}
	n := newTestNormalizer(repo, &capturingPublisher{}, normalizer.Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := n.Normalize(ctx, "p1", "FLR-01", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.codeCalls, "repeat lookups should hit the cache")
}

func TestNormalize_NegativeResultCachedAndSignaledOnce(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{}}
	bus := &capturingPublisher{}
	n := newTestNormalizer(repo, bus, normalizer.Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := n.Normalize(ctx, "p1", "UNKNOWN", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.codeCalls)
	assert.Len(t, bus.missing, 1, "missing signal should fire once per cache window")
}

func TestNormalize_CacheEntriesExpire(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/FLR-01": {ProviderID: "p1", Code: "FLR-01", CanonicalForm: strPtr("wheat flour")},
	}}
	n := newTestNormalizer(repo, &capturingPublisher{}, normalizer.Options{CacheTTL: 10 * time.Millisecond})
	ctx := context.Background()

	_, err := n.Normalize(ctx, "p1", "FLR-01", "")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = n.Normalize(ctx, "p1", "FLR-01", "")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.codeCalls, "expired entry should trigger a fresh lookup")
}

func TestNormalizeBatch_GroupsMissesIntoOneLookup(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/A": {ProviderID: "p1", Code: "A", CanonicalForm: strPtr("apple")},
		"p1/B": {ProviderID: "p1", Code: "B", CanonicalForm: strPtr("butter")},
	}}
	bus := &capturingPublisher{}
	n := newTestNormalizer(repo, bus, normalizer.Options{})

	result, err := n.NormalizeBatch(context.Background(), "p1", []string{"A", "B", "C", "A"}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.batchCalls)
	assert.Len(t, result, 3)
	require.NotNil(t, result["A"])
	assert.Equal(t, "apple", *result["A"])
	require.NotNil(t, result["B"])
	assert.Equal(t, "butter", *result["B"])
	assert.Nil(t, result["C"])

	require.Len(t, bus.missing, 1)
	assert.Equal(t, "C", bus.missing[0].Code)
}

func TestNormalizeBatch_CachedCodesSkipRepository(t *testing.T) {
	t.Parallel()

	repo := &fakeMappingRepo{mappings: map[string]*domain.IngredientMapping{
		"p1/A": {ProviderID: "p1", Code: "A", CanonicalForm: strPtr("apple")},
	}}
	n := newTestNormalizer(repo, &capturingPublisher{}, normalizer.Options{})
	ctx := context.Background()

	_, err := n.NormalizeBatch(ctx, "p1", []string{"A"}, "")
	require.NoError(t, err)
	_, err = n.NormalizeBatch(ctx, "p1", []string{"A"}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.batchCalls, "fully cached batch should not hit the repository")
}
