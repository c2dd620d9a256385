// Package ingest is the document write path: validate, fingerprint, extract,
// chunk, and index. Ingestion is idempotent: the namespace is a content
// fingerprint, so re-uploading identical bytes is a no-op.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/config"
	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/metrics"
	"github.com/roeisharon/MedAI/internal/models"
	"github.com/roeisharon/MedAI/internal/parser"
)

// Indexer is the slice of the vector store ingestion needs.
type Indexer interface {
	StoreChunks(ctx context.Context, namespace string, chunks []models.Chunk) error
	Exists(ctx context.Context, namespace string) bool
}

type Ingestor struct {
	index    Indexer
	metrics  *metrics.Metrics
	maxBytes int64
	size     int
	overlap  int
}

func New(index Indexer, m *metrics.Metrics, cfg *config.RAGConfig) *Ingestor {
	return &Ingestor{
		index:    index,
		metrics:  m,
		maxBytes: cfg.MaxUploadBytes,
		size:     cfg.ChunkSize,
		overlap:  cfg.ChunkOverlap,
	}
}

// Fingerprint derives the deterministic leaflet id from the raw bytes:
// identical content always maps to the same namespace.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Ingest runs the full write path for one uploaded document and returns its
// leaflet id and total page count. If the fingerprint is already indexed the
// heavy work is skipped and the same result is returned.
//
// Two concurrent first-time uploads of the same content may both index; that
// race only wastes work, both writers produce identical fingerprint-keyed
// chunks.
func (ing *Ingestor) Ingest(ctx context.Context, data []byte, filename string) (models.IngestResult, error) {
	if len(data) == 0 {
		return models.IngestResult{}, errs.New(errs.KindEmptyUpload, "")
	}
	if int64(len(data)) > ing.maxBytes {
		return models.IngestResult{}, errs.Newf(errs.KindTooLarge, "size: %d bytes", len(data))
	}

	leafletID := Fingerprint(data)

	start := time.Now()
	pages, pageCount, err := parser.ExtractPages(data, filename)
	if err != nil {
		return models.IngestResult{}, err
	}
	log.Info().
		Str("leaflet_id", leafletID).
		Str("filename", filename).
		Int("pages", len(pages)).
		Dur("latency", time.Since(start)).
		Msg("Text extracted")

	result := models.IngestResult{LeafletID: leafletID, PageCount: pageCount}

	if ing.index.Exists(ctx, leafletID) {
		log.Info().Str("leaflet_id", leafletID).Str("filename", filename).Msg("Document already indexed, skipping")
		return result, nil
	}

	chunks := parser.ChunkPages(pages, ing.size, ing.overlap)

	start = time.Now()
	if err := ing.index.StoreChunks(ctx, leafletID, chunks); err != nil {
		return models.IngestResult{}, err
	}
	ing.metrics.RecordUpload()
	log.Info().
		Str("leaflet_id", leafletID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Dur("latency", time.Since(start)).
		Msg("Document ingestion complete")

	return result, nil
}
