package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/chromemdb"
	"github.com/roeisharon/MedAI/internal/config"
	"github.com/roeisharon/MedAI/internal/db"
	"github.com/roeisharon/MedAI/internal/embedding"
	"github.com/roeisharon/MedAI/internal/ingest"
	"github.com/roeisharon/MedAI/internal/llmservice"
	"github.com/roeisharon/MedAI/internal/metrics"
	"github.com/roeisharon/MedAI/internal/rag"
	"github.com/roeisharon/MedAI/internal/retriever"
	"github.com/roeisharon/MedAI/internal/server"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	store := db.Connect(&cfg.Database)
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initialising database schema")
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating embedder")
	}

	if err := os.MkdirAll(cfg.RAG.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Error creating data directory")
	}
	vectors, err := chromemdb.NewStore(filepath.Join(cfg.RAG.DataDir, "chromem"), embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	m := metrics.New()
	llm := llmservice.NewOpenAIClient(&cfg.LLM)
	searcher := retriever.New(vectors)
	answers := rag.New(vectors, searcher, llm, m, cfg.RAG.SearchResults, cfg.RAG.ContextChunks)
	ingestor := ingest.New(vectors, m, &cfg.RAG)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(store, ingestor, answers, vectors, m).Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
