package identifier

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	slugs map[string]bool
	skus  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{slugs: map[string]bool{}, skus: map[string]bool{}}
}

func (s *fakeStore) ProductSlugExists(_ context.Context, _, slug string) (bool, error) {
	return s.slugs[slug], nil
}

func (s *fakeStore) VariantSKUExists(_ context.Context, _, sku string) (bool, error) {
	return s.skus[sku], nil
}

func newTestGenerator(store Store) *Generator {
	g := New(store)
	g.rand = rand.New(rand.NewSource(1))
	g.now = func() time.Time { return time.UnixMilli(1724900000000) }
	return g
}

func TestSlugifyNormalizes(t *testing.T) {
	g := newTestGenerator(newFakeStore())

	cases := map[string]string{
		"Silk Saree":        "silk-saree",
		"  Silk   Saree  ":  "silk-saree",
		"Silk_Saree (Red)!": "silk-saree-red",
		"Silk's Saree":      "silks-saree",
		"--Saree--":         "saree",
		"!!!":               "product",
	}
	for name, want := range cases {
		slug, err := g.Slugify(context.Background(), "tenant-1", name)
		require.NoError(t, err)
		assert.Equal(t, want, slug, "name %q", name)
	}
}

func TestSlugifyAppendsCounterOnCollision(t *testing.T) {
	store := newFakeStore()
	g := newTestGenerator(store)

	first, err := g.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree", first)
	store.slugs[first] = true

	second, err := g.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree-1", second)
	store.slugs[second] = true

	third, err := g.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree-2", third)
}

func TestSlugifyBoundedRetryFallsBackToRandomSuffix(t *testing.T) {
	store := newFakeStore()
	store.slugs["silk-saree"] = true
	for i := 1; i <= slugRetryLimit; i++ {
		store.slugs[fmt.Sprintf("silk-saree-%d", i)] = true
	}
	g := newTestGenerator(store)

	slug, err := g.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^silk-saree-[0-9a-f]{4}$`), slug)
}

func TestSKUForPrefixSelection(t *testing.T) {
	g := newTestGenerator(newFakeStore())

	cases := map[string]string{
		"SAR":       "SAR",
		"sar":       "SAR",
		"sarees":    "SAR",
		"footwear":  "FTW",
		"gadgets":   "PRD",
		"":          "PRD",
		"wide-code": "PRD",
	}
	for code, prefix := range cases {
		sku, err := g.SKUFor(context.Background(), "tenant-1", code, 1)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile("^"+prefix+`-\d{4}$`), sku, "code %q", code)
	}
}

func TestSKUForRetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	g := newTestGenerator(store)

	sku, err := g.SKUFor(context.Background(), "tenant-1", "SAR", 1)
	require.NoError(t, err)
	store.skus[sku] = true

	next, err := g.SKUFor(context.Background(), "tenant-1", "SAR", 2)
	require.NoError(t, err)
	assert.NotEqual(t, sku, next)
}

func TestScopeSuffixesRepeatedNames(t *testing.T) {
	g := newTestGenerator(newFakeStore())
	scope := g.Scope()

	first, err := scope.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree", first)

	// Nothing has committed yet, so the store still reports the base slug
	// free; the scope must suffix anyway.
	second, err := scope.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree-1", second)

	third, err := scope.Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	assert.Equal(t, "silk-saree-2", third)
}

func TestScopeIsIndependentPerRun(t *testing.T) {
	g := newTestGenerator(newFakeStore())

	first, err := g.Scope().Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)
	second, err := g.Scope().Slugify(context.Background(), "tenant-1", "Silk Saree")
	require.NoError(t, err)

	// A fresh scope carries no reservations from earlier runs.
	assert.Equal(t, first, second)
}

// sequenceSource replays a fixed list of draws; each value v<<32 makes
// rand.Intn return v.
type sequenceSource struct {
	vals []int64
	idx  int
}

func (s *sequenceSource) Int63() int64 {
	v := s.vals[s.idx%len(s.vals)]
	s.idx++
	return v
}

func (s *sequenceSource) Seed(int64) {}

func TestScopeRerollsRepeatedSKUDraw(t *testing.T) {
	g := newTestGenerator(newFakeStore())
	g.rand = rand.New(&sequenceSource{vals: []int64{42 << 32, 42 << 32, 777 << 32}})
	scope := g.Scope()

	first, err := scope.SKUFor(context.Background(), "tenant-1", "SAR", 1)
	require.NoError(t, err)
	assert.Equal(t, "SAR-0042", first)

	// The second call draws 42 again; the scope rejects it before the store
	// is even asked and the next draw wins.
	second, err := scope.SKUFor(context.Background(), "tenant-1", "SAR", 2)
	require.NoError(t, err)
	assert.Equal(t, "SAR-0777", second)
}

type collidingStore struct{}

func (collidingStore) ProductSlugExists(context.Context, string, string) (bool, error) {
	return true, nil
}

func (collidingStore) VariantSKUExists(context.Context, string, string) (bool, error) {
	return true, nil
}

func TestSKUForTimestampFallbackTerminates(t *testing.T) {
	g := newTestGenerator(collidingStore{})

	sku, err := g.SKUFor(context.Background(), "tenant-1", "SAR", 7)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^SAR-\d+-7$`), sku)
}
