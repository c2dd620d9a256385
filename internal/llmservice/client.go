// Package llmservice is the chat-completion capability: a go-openai client
// with a hard per-call timeout, temperature pinned to 0 for deterministic
// medical answers, and provider failures translated into the errs taxonomy.
package llmservice

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/roeisharon/MedAI/internal/config"
	"github.com/roeisharon/MedAI/internal/errs"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Client is the completion capability consumed by the answer pipeline.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIClient implements Client on the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(cfg *config.LLMConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(strings.TrimPrefix(cfg.Key, "Bearer "))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: time.Duration(cfg.Timeout),
	}
}

// Complete sends one message sequence and returns the raw model text. The
// call is single-attempt with a hard timeout; callers get an errs kind, never
// a raw provider error.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", MapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.KindLLMAPIError, "completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// MapProviderError translates OpenAI SDK failures into stable error kinds so
// the rest of the system never sees provider-specific errors.
func MapProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindLLMTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return errs.Wrap(errs.KindLLMRateLimit, err)
		case apiErr.HTTPStatusCode == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, "context_length_exceeded"):
			return errs.Wrap(errs.KindLLMContextTooLong, err)
		case isContextLengthCode(apiErr.Code):
			return errs.Wrap(errs.KindLLMContextTooLong, err)
		default:
			return errs.Wrap(errs.KindLLMAPIError, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errs.Wrap(errs.KindLLMAPIError, err)
	}

	return errs.Wrap(errs.KindInternal, err)
}

func isContextLengthCode(code any) bool {
	s, ok := code.(string)
	return ok && s == "context_length_exceeded"
}
