// Package server exposes the chatbot over HTTP: chat lifecycle (create by
// uploading a leaflet, list, rename, delete), message history, the ask
// endpoint, and the metrics/health endpoints.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/db"
	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/ingest"
	"github.com/roeisharon/MedAI/internal/metrics"
	"github.com/roeisharon/MedAI/internal/models"
	"github.com/roeisharon/MedAI/internal/rag"
)

// greetingMessage is auto-inserted as the first assistant message of every
// new chat so the frontend has something to display right after upload.
const greetingMessage = "Hello! I'm your medical leaflet assistant. I've loaded your leaflet and I'm ready to help. " +
	"You can ask me anything about this medication — dosage, side effects, warnings, interactions, " +
	"and more. What would you like to know?"

// VectorCleaner is the best-effort vector cleanup used when the last chat
// referencing a leaflet is removed.
type VectorCleaner interface {
	Delete(ctx context.Context, namespace string) bool
}

type Server struct {
	store    *db.Store
	ingestor *ingest.Ingestor
	answers  *rag.Service
	vectors  VectorCleaner
	metrics  *metrics.Metrics
}

func New(store *db.Store, ingestor *ingest.Ingestor, answers *rag.Service, vectors VectorCleaner, m *metrics.Metrics) *Server {
	return &Server{store: store, ingestor: ingestor, answers: answers, vectors: vectors, metrics: m}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chats", s.handleCreateChat)
	mux.HandleFunc("GET /chats", s.handleListChats)
	mux.HandleFunc("GET /chats/{id}", s.handleGetChat)
	mux.HandleFunc("PATCH /chats/{id}", s.handleRenameChat)
	mux.HandleFunc("DELETE /chats/{id}", s.handleDeleteChat)
	mux.HandleFunc("GET /chats/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /chats/{id}/ask", s.handleAsk)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withRequestLogging(mux)
}

type ctxKey int

const requestIDKey ctxKey = 0

// RequestID returns the request id attached by the logging middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestLogging assigns a request id, logs start and completion with
// latency, and feeds the request counters.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request started")
		s.metrics.RecordRequest()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		latency := time.Since(start)
		s.metrics.RecordLatency(float64(latency.Milliseconds()))
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", latency).
			Msg("Request completed")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleCreateChat ingests an uploaded leaflet and opens a chat session for
// it, seeding the history with the assistant greeting.
func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(ctx, w, errs.Wrap(errs.KindEmptyUpload, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(ctx, w, errs.Wrap(errs.KindInternal, err))
		return
	}

	result, err := s.ingestor.Ingest(ctx, data, header.Filename)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	chat, err := s.store.CreateChat(ctx, result.LeafletID, header.Filename, r.FormValue("title"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if _, err := s.store.AddMessage(ctx, chat.ID, models.RoleAssistant, greetingMessage, nil); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.metrics.RecordSession()
	log.Info().
		Str("request_id", RequestID(ctx)).
		Str("chat_id", chat.ID).
		Str("leaflet_id", result.LeafletID).
		Msg("Chat session created")

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":         chat.ID,
		"title":      chat.Title,
		"leaflet_id": chat.LeafletID,
		"filename":   chat.Filename,
		"created_at": chat.CreatedAt,
		"updated_at": chat.UpdatedAt,
		"greeting":   greetingMessage,
		"page_count": result.PageCount,
	})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if chats == nil {
		chats = []db.Chat{}
	}
	s.writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.store.GetChat(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		s.writeError(r.Context(), w, errs.New(errs.KindInternal, "invalid rename payload"))
		return
	}
	chat, err := s.store.UpdateChatTitle(r.Context(), r.PathValue("id"), body.Title)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chat)
}

// handleDeleteChat removes a chat and its messages. The leaflet's vectors
// are dropped only when no other chat references the same content
// fingerprint.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := r.PathValue("id")

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	others, err := s.store.CountChatsForLeaflet(ctx, chat.LeafletID, chatID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if others == 0 {
		s.vectors.Delete(ctx, chat.LeafletID)
	}

	if _, err := s.store.DeleteChat(ctx, chatID); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	log.Info().
		Str("request_id", RequestID(ctx)).
		Str("chat_id", chatID).
		Str("leaflet_id", chat.LeafletID).
		Msg("Chat removed")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Chat '" + chatID + "' and all its messages have been deleted.",
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.store.GetChat(ctx, r.PathValue("id")); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	messages, err := s.store.GetMessages(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if messages == nil {
		messages = []db.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

// handleAsk answers one question grounded in the chat's leaflet. The user
// turn is persisted before the pipeline runs so it is in history for future
// turns even if this call fails downstream.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := r.PathValue("id")

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(ctx, w, errs.Wrap(errs.KindEmptyQuestion, err))
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		s.writeError(ctx, w, errs.New(errs.KindEmptyQuestion, ""))
		return
	}

	// History excludes the question being asked; the pipeline appends it as
	// the final user message itself.
	history, err := s.store.HistoryForModel(ctx, chatID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	if _, err := s.store.AddMessage(ctx, chatID, models.RoleUser, body.Question, nil); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.metrics.RecordQuestion()
	log.Info().
		Str("request_id", RequestID(ctx)).
		Str("chat_id", chatID).
		Str("leaflet_id", chat.LeafletID).
		Int("history_turns", len(history)).
		Msg("Processing question")

	answer, err := s.answers.AnswerQuestion(ctx, chat.LeafletID, body.Question, history)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	msg, err := s.store.AddMessage(ctx, chatID, models.RoleAssistant, answer.Answer, answer.Citations)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	citations := answer.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message_id":  msg.ID,
		"answer":      answer.Answer,
		"citations":   citations,
		"is_greeting": answer.IsGreeting,
		"chat_id":     chatID,
		"request_id":  RequestID(ctx),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError serialises an application error with its stable code and
// user-safe message. Internal detail is logged, never returned.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	s.metrics.RecordError(string(kind))

	evt := log.Warn()
	if kind == errs.KindInternal {
		evt = log.Error()
	}
	evt.
		Str("request_id", RequestID(ctx)).
		Str("error_code", string(kind)).
		Err(err).
		Msg("Request failed")

	s.writeJSON(w, errs.HTTPStatus(err), map[string]any{
		"error_code":   string(kind),
		"user_message": errs.UserMessage(err),
		"detail":       nil,
	})
}
