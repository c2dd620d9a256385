package llmservice

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/roeisharon/MedAI/internal/errs"
)

func TestMapProviderErrorTimeout(t *testing.T) {
	err := MapProviderError(context.DeadlineExceeded)
	assert.True(t, errs.IsKind(err, errs.KindLLMTimeout))
}

func TestMapProviderErrorRateLimit(t *testing.T) {
	err := MapProviderError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"})
	assert.True(t, errs.IsKind(err, errs.KindLLMRateLimit))
}

func TestMapProviderErrorContextTooLongByMessage(t *testing.T) {
	err := MapProviderError(&openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        "This model's maximum context length is exceeded: context_length_exceeded",
	})
	assert.True(t, errs.IsKind(err, errs.KindLLMContextTooLong))
}

func TestMapProviderErrorContextTooLongByCode(t *testing.T) {
	err := MapProviderError(&openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           "context_length_exceeded",
	})
	assert.True(t, errs.IsKind(err, errs.KindLLMContextTooLong))
}

func TestMapProviderErrorGenericAPIError(t *testing.T) {
	err := MapProviderError(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError})
	assert.True(t, errs.IsKind(err, errs.KindLLMAPIError))
}

func TestMapProviderErrorRequestError(t *testing.T) {
	err := MapProviderError(&openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")})
	assert.True(t, errs.IsKind(err, errs.KindLLMAPIError))
}

func TestMapProviderErrorUnknown(t *testing.T) {
	err := MapProviderError(errors.New("connection reset"))
	assert.True(t, errs.IsKind(err, errs.KindInternal))
}
