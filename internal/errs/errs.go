// Package errs is the central error catalog for the leaflet chatbot.
//
// Every error that can reach a caller carries a stable machine-readable Kind
// (snake_case string, safe as an API error_code), a user-facing message safe
// to display verbatim, and an optional internal detail string that is logged
// server-side and never shown to end users.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	// Upload / document errors.
	KindInvalidFormat = Kind("pdf_invalid_format")
	KindNoText        = Kind("pdf_no_text")
	KindEmptyUpload   = Kind("pdf_empty")
	KindTooLarge      = Kind("pdf_too_large")

	// Chat errors.
	KindChatNotFound  = Kind("chat_not_found")
	KindEmptyQuestion = Kind("chat_empty_question")

	// Model provider errors.
	KindLLMTimeout        = Kind("llm_timeout")
	KindLLMRateLimit      = Kind("llm_rate_limit")
	KindLLMAPIError       = Kind("llm_api_error")
	KindLLMContextTooLong = Kind("llm_context_too_long")

	// Vector store errors.
	KindVectorDB        = Kind("vector_db_error")
	KindLeafletNotFound = Kind("leaflet_not_indexed")

	// Generic.
	KindInternal    = Kind("internal_error")
	KindUnavailable = Kind("service_unavailable")
)

// kindInfo maps each kind to its HTTP status and the message shown to users.
var kindInfo = map[Kind]struct {
	status  int
	message string
}{
	KindInvalidFormat: {http.StatusBadRequest, "The uploaded file is not a valid document. Please upload a PDF leaflet."},
	KindNoText:        {http.StatusUnprocessableEntity, "The document appears to be scanned or image-based and contains no readable text. Please use a file with selectable text."},
	KindEmptyUpload:   {http.StatusBadRequest, "The uploaded file is empty. Please upload a valid document."},
	KindTooLarge:      {http.StatusRequestEntityTooLarge, "The document is too large. Please upload a file under 20MB."},

	KindChatNotFound:  {http.StatusNotFound, "Chat session not found. It may have been deleted."},
	KindEmptyQuestion: {http.StatusBadRequest, "Please enter a question before sending."},

	KindLLMTimeout:        {http.StatusGatewayTimeout, "The AI service took too long to respond. Please try again in a moment."},
	KindLLMRateLimit:      {http.StatusTooManyRequests, "Too many requests to the AI service. Please wait a moment and try again."},
	KindLLMAPIError:       {http.StatusBadGateway, "The AI service returned an error. Please try again shortly."},
	KindLLMContextTooLong: {http.StatusUnprocessableEntity, "The question or conversation is too long to process. Please start a new chat."},

	KindVectorDB:        {http.StatusInternalServerError, "An error occurred while searching the leaflet. Please try again."},
	KindLeafletNotFound: {http.StatusNotFound, "The leaflet for this chat could not be found. The document may need to be re-uploaded."},

	KindInternal:    {http.StatusInternalServerError, "An unexpected error occurred. Please try again."},
	KindUnavailable: {http.StatusServiceUnavailable, "The service is temporarily unavailable. Please try again shortly."},
}

// Error is the application error type. Message is safe for end users; Detail
// is internal-only diagnostic context.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind with optional internal detail.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Message: userMessage(kind), Detail: detail}
}

// Newf is New with a formatted detail string.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an underlying cause. The cause's text becomes the
// internal detail; it is never exposed to users.
func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return New(kind, "")
	}
	return &Error{Kind: kind, Message: userMessage(kind), Detail: cause.Error(), cause: cause}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus returns the HTTP status code for err's kind.
func HTTPStatus(err error) int {
	if info, ok := kindInfo[KindOf(err)]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// UserMessage returns the display-safe message for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return userMessage(KindInternal)
}

func userMessage(kind Kind) string {
	if info, ok := kindInfo[kind]; ok {
		return info.message
	}
	return kindInfo[KindInternal].message
}
