package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeisharon/MedAI/internal/config"
	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/metrics"
	"github.com/roeisharon/MedAI/internal/models"
)

type fakeIndexer struct {
	stored    map[string][]models.Chunk
	existing  map[string]bool
	storeCall int
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{stored: map[string][]models.Chunk{}, existing: map[string]bool{}}
}

func (f *fakeIndexer) StoreChunks(_ context.Context, namespace string, chunks []models.Chunk) error {
	f.storeCall++
	f.stored[namespace] = chunks
	f.existing[namespace] = true
	return nil
}

func (f *fakeIndexer) Exists(_ context.Context, namespace string) bool {
	return f.existing[namespace]
}

func testIngestor(index *fakeIndexer) *Ingestor {
	return New(index, metrics.New(), &config.RAGConfig{
		ChunkSize:      1200,
		ChunkOverlap:   200,
		MaxUploadBytes: 1 << 20,
	})
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("leaflet content"))
	b := Fingerprint([]byte("leaflet content"))
	c := Fingerprint([]byte("different content"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", a)
}

func TestIngestEmptyUpload(t *testing.T) {
	ing := testIngestor(newFakeIndexer())
	_, err := ing.Ingest(context.Background(), nil, "leaflet.txt")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindEmptyUpload))
}

func TestIngestTooLarge(t *testing.T) {
	ing := testIngestor(newFakeIndexer())
	_, err := ing.Ingest(context.Background(), make([]byte, 2<<20), "leaflet.txt")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTooLarge))
}

func TestIngestStoresChunks(t *testing.T) {
	index := newFakeIndexer()
	ing := testIngestor(index)

	data := []byte("DOSAGE\nTake 1 tablet twice daily with water.")
	result, err := ing.Ingest(context.Background(), data, "leaflet.txt")
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(data), result.LeafletID)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, index.stored[result.LeafletID], 1)
	assert.Contains(t, index.stored[result.LeafletID][0].Text, "Take 1 tablet")
}

func TestIngestIdempotent(t *testing.T) {
	index := newFakeIndexer()
	ing := testIngestor(index)
	data := []byte("DOSAGE\nTake 1 tablet twice daily with water.")

	first, err := ing.Ingest(context.Background(), data, "leaflet.txt")
	require.NoError(t, err)
	second, err := ing.Ingest(context.Background(), data, "copy-of-leaflet.txt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The second upload must not re-index.
	assert.Equal(t, 1, index.storeCall)
}

func TestIngestInvalidDocument(t *testing.T) {
	ing := testIngestor(newFakeIndexer())
	_, err := ing.Ingest(context.Background(), []byte("not a pdf"), "leaflet.pdf")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidFormat))
}
