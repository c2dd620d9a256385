package chromemdb

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeisharon/MedAI/internal/models"
)

// bagEmbedder is a deterministic bag-of-words embedder: texts sharing words
// get similar vectors, so nearest-neighbour ranking is predictable.
type bagEmbedder struct{}

const bagDim = 32

func bagVector(text string) []float32 {
	v := make([]float32, bagDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%bagDim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		norm = 1
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (bagEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagVector(t)
	}
	return out, nil
}

func (bagEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return bagVector(text), nil
}

func testChunks() []models.Chunk {
	return []models.Chunk{
		{Index: 0, Page: 1, Section: "DOSAGE", Text: "Take 1 tablet twice daily with water."},
		{Index: 1, Page: 2, Section: "STORAGE", Text: "Keep below 25 degrees in a dry place."},
		{Index: 2, Page: 3, Section: "WARNINGS", Text: "Do not exceed the stated dose."},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemoryStore(bagEmbedder{})
	require.NoError(t, err)
	return store
}

func TestStoreChunksAndExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.False(t, store.Exists(ctx, "ns1"))
	require.NoError(t, store.StoreChunks(ctx, "ns1", testChunks()))
	assert.True(t, store.Exists(ctx, "ns1"))
	assert.False(t, store.Exists(ctx, "ns2"))
}

func TestStoreChunksEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.StoreChunks(ctx, "ns1", nil))
	assert.False(t, store.Exists(ctx, "ns1"))
}

func TestSearchRanksByWordOverlap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.StoreChunks(ctx, "ns1", testChunks()))

	results, err := store.Search(ctx, "ns1", "tablet daily dosage", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Take 1 tablet twice daily with water.", results[0].Text)
	assert.Equal(t, 1, results[0].Page)
	assert.Equal(t, "DOSAGE", results[0].Section)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.StoreChunks(ctx, "ns1", testChunks()))
	require.NoError(t, store.StoreChunks(ctx, "ns2", []models.Chunk{
		{Index: 0, Page: 1, Text: "Completely unrelated second leaflet."},
	}))

	results, err := store.Search(ctx, "ns2", "tablet daily dosage", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "Completely unrelated second leaflet.", r.Text)
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	results, err := store.Search(ctx, "ns1", "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetAllReturnsChunksInOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.StoreChunks(ctx, "ns1", testChunks()))

	all, err := store.GetAll(ctx, "ns1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Take 1 tablet twice daily with water.", all[0].Text)
	assert.Equal(t, "Keep below 25 degrees in a dry place.", all[1].Text)
	assert.Equal(t, "Do not exceed the stated dose.", all[2].Text)
	assert.Equal(t, 2, all[1].Page)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.StoreChunks(ctx, "ns1", testChunks()))
	require.NoError(t, store.StoreChunks(ctx, "ns2", []models.Chunk{
		{Index: 0, Page: 1, Text: "Another leaflet."},
	}))

	assert.True(t, store.Delete(ctx, "ns1"))
	assert.False(t, store.Exists(ctx, "ns1"))
	// Other namespaces are untouched.
	assert.True(t, store.Exists(ctx, "ns2"))
	// Deleting again is a no-op.
	assert.False(t, store.Delete(ctx, "ns1"))
}
