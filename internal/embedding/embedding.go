// Package embedding wraps the langchaingo OpenAI embedder behind a small
// interface so the vector layer and tests can swap in fakes.
package embedding

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/roeisharon/MedAI/internal/config"
)

// Embedder is the embedding capability consumed by indexing and retrieval.
type Embedder interface {
	// EmbedDocuments embeds a batch of chunk texts in one provider call.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the OpenAI-backed embedder from config. BaseURL may
// point at any OpenAI-compatible endpoint.
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}
