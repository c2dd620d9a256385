// Package rag is the question-answering core: intent gate, retrieval,
// grounded prompt assembly, completion, and structured-response parsing.
package rag

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/llmservice"
	"github.com/roeisharon/MedAI/internal/metrics"
	"github.com/roeisharon/MedAI/internal/models"
)

// VectorIndex is the slice of the vector store the orchestrator needs
// directly (retrieval goes through the Searcher).
type VectorIndex interface {
	Exists(ctx context.Context, namespace string) bool
}

// Searcher is the retrieval capability.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, limit int) ([]models.RetrievedChunk, error)
}

type Service struct {
	index         VectorIndex
	searcher      Searcher
	llm           llmservice.Client
	metrics       *metrics.Metrics
	searchResults int
	contextChunks int
}

func New(index VectorIndex, searcher Searcher, llm llmservice.Client, m *metrics.Metrics, searchResults, contextChunks int) *Service {
	if searchResults <= 0 {
		searchResults = 20
	}
	if contextChunks <= 0 {
		contextChunks = 10
	}
	return &Service{
		index:         index,
		searcher:      searcher,
		llm:           llm,
		metrics:       m,
		searchResults: searchResults,
		contextChunks: contextChunks,
	}
}

// AnswerQuestion runs the full pipeline for one user message against the
// leaflet stored under leafletID. history is the prior conversation, oldest
// first, excluding the current question.
func (s *Service) AnswerQuestion(ctx context.Context, leafletID, question string, history []models.Turn) (models.Answer, error) {
	if IsGreeting(question) {
		log.Info().Str("leaflet_id", leafletID).Msg("Greeting detected, skipping retrieval")
		return s.answerGreeting(ctx, question)
	}

	if !s.index.Exists(ctx, leafletID) {
		return models.Answer{}, errs.Newf(errs.KindLeafletNotFound, "leaflet_id=%s", leafletID)
	}

	start := time.Now()
	retrieved, err := s.searcher.Search(ctx, leafletID, question, s.searchResults)
	if err != nil {
		return models.Answer{}, err
	}
	log.Info().
		Str("leaflet_id", leafletID).
		Int("chunks", len(retrieved)).
		Dur("latency", time.Since(start)).
		Msg("Vector search completed")

	// Nothing relevant is a legitimate outcome, not an error: answer with
	// the fixed not-in-leaflet message.
	if len(retrieved) == 0 {
		return models.Answer{Answer: models.NoAnswerMessage}, nil
	}

	// Bound the prompt to the top chunks to stay clear of the context limit.
	contextChunks := retrieved
	if len(contextChunks) > s.contextChunks {
		contextChunks = contextChunks[:s.contextChunks]
	}

	messages := BuildGroundedMessages(FormatContext(contextChunks), history, question)

	start = time.Now()
	raw, err := s.llm.Complete(ctx, messages)
	s.metrics.RecordLLMCall(err == nil)
	if err != nil {
		return models.Answer{}, err
	}
	log.Info().
		Str("leaflet_id", leafletID).
		Dur("latency", time.Since(start)).
		Msg("Completion finished")

	answer, citations := ParseResponse(raw, contextChunks)
	log.Info().
		Str("leaflet_id", leafletID).
		Int("chunks_used", len(retrieved)).
		Int("citations", len(citations)).
		Int("answer_length", len(answer)).
		Msg("Answer generated")

	return models.Answer{Answer: answer, Citations: citations}, nil
}

// answerGreeting handles social messages without touching the leaflet.
func (s *Service) answerGreeting(ctx context.Context, question string) (models.Answer, error) {
	raw, err := s.llm.Complete(ctx, BuildGreetingMessages(question))
	s.metrics.RecordLLMCall(err == nil)
	if err != nil {
		return models.Answer{}, err
	}
	return models.Answer{Answer: strings.TrimSpace(raw), IsGreeting: true}, nil
}
