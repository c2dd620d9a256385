// Package chromemdb wraps the chromem-go vector database as a
// namespace-scoped chunk index. A namespace is one leaflet's content
// fingerprint; all chunks of a leaflet live under it and retrieval never
// crosses namespaces.
package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/embedding"
	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/models"
)

const collectionName = "medical_leaflets"

// maxNamespaceChunks caps the GetAll walk so a corrupted index cannot loop.
const maxNamespaceChunks = 10000

// Store encapsulates the chromem collection plus the embedder used to turn
// chunk texts and queries into vectors.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedding.Embedder
}

// NewStore opens (or creates) the persistent vector database under dbPath.
func NewStore(dbPath string, embedder embedding.Embedder) (*Store, error) {
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}
	return newStore(db, embedder)
}

// NewMemoryStore creates an in-memory store, used by tests.
func NewMemoryStore(embedder embedding.Embedder) (*Store, error) {
	return newStore(chromem.NewDB(), embedder)
}

func newStore(db *chromem.DB, embedder embedding.Embedder) (*Store, error) {
	// Embeddings are always provided explicitly, so no embedding func is
	// registered on the collection.
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	return &Store{db: db, collection: collection, embedder: embedder}, nil
}

func chunkID(namespace string, index int) string {
	return fmt.Sprintf("%s__chunk_%d", namespace, index)
}

// StoreChunks embeds all chunk texts in one batch call and upserts them under
// the namespace. A failure anywhere surfaces as a single vector-store error;
// partial writes are harmless because ingestion is idempotent and retried
// ingestion rewrites the same fingerprint-derived ids.
func (s *Store) StoreChunks(ctx context.Context, namespace string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return errs.Wrap(errs.KindVectorDB, err)
	}
	if len(vectors) != len(chunks) {
		return errs.Newf(errs.KindVectorDB, "embedded %d of %d chunks", len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      chunkID(namespace, c.Index),
			Content: c.Text,
			Metadata: map[string]string{
				"namespace":   namespace,
				"chunk_index": strconv.Itoa(c.Index),
				"page":        strconv.Itoa(c.Page),
				"section":     c.Section,
			},
			Embedding: vectors[i],
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return errs.Wrap(errs.KindVectorDB, err)
	}
	return nil
}

// Search embeds the query and runs a nearest-neighbour search scoped to the
// namespace. Scores are cosine similarity, higher is more relevant.
func (s *Store) Search(ctx context.Context, namespace, query string, limit int) ([]models.RetrievedChunk, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, err)
	}

	// chromem rejects nResults larger than the collection size.
	if count := s.collection.Count(); count == 0 {
		return nil, nil
	} else if limit > count {
		limit = count
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       limit,
		Where:          map[string]string{"namespace": namespace},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, err)
	}

	out := make([]models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, resultChunk(r.Content, r.Metadata, float64(r.Similarity)))
	}
	return out, nil
}

// GetAll returns every chunk stored under the namespace, in chunk order. Ids
// are deterministic (namespace + index), so a straight walk finds them all.
// This is a full-namespace scan; acceptable because a namespace holds one
// document's worth of chunks.
func (s *Store) GetAll(ctx context.Context, namespace string) ([]models.RetrievedChunk, error) {
	var out []models.RetrievedChunk
	for i := 0; i < maxNamespaceChunks; i++ {
		doc, err := s.collection.GetByID(ctx, chunkID(namespace, i))
		if err != nil {
			break
		}
		out = append(out, resultChunk(doc.Content, doc.Metadata, 0))
	}
	return out, nil
}

// Exists reports whether the namespace has at least one stored chunk. Any
// underlying failure reads as "does not exist": this is a pre-flight guard,
// not a source of truth.
func (s *Store) Exists(ctx context.Context, namespace string) bool {
	_, err := s.collection.GetByID(ctx, chunkID(namespace, 0))
	return err == nil
}

// Delete removes all chunks under the namespace and reports whether anything
// was deleted. Failures are logged and swallowed: cleanup is best-effort and
// never fatal to the caller's primary operation.
func (s *Store) Delete(ctx context.Context, namespace string) bool {
	if !s.Exists(ctx, namespace) {
		return false
	}
	if err := s.collection.Delete(ctx, map[string]string{"namespace": namespace}, nil); err != nil {
		log.Warn().Err(err).Str("leaflet_id", namespace).Msg("Failed to delete leaflet vectors")
		return false
	}
	log.Info().Str("leaflet_id", namespace).Msg("Deleted leaflet vectors")
	return true
}

func resultChunk(content string, metadata map[string]string, score float64) models.RetrievedChunk {
	page, _ := strconv.Atoi(metadata["page"])
	return models.RetrievedChunk{
		Text:    content,
		Page:    page,
		Section: metadata["section"],
		Score:   score,
	}
}
