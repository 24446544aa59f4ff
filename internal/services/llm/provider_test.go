package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/percipio/internal/models"
	"google.golang.org/genai"
)

func TestClassifyError_ContextErrors(t *testing.T) {
	assert.Equal(t, context.Canceled, classifyError(context.Canceled))
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), models.ErrLLMTransient)
}

func TestClassifyError_StatusSplit(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{429, models.ErrLLMTransient},
		{500, models.ErrLLMTransient},
		{503, models.ErrLLMTransient},
		{408, models.ErrLLMTransient},
		{400, models.ErrLLMPermanent},
		{401, models.ErrLLMPermanent},
		{404, models.ErrLLMPermanent},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("status %d", tc.code), func(t *testing.T) {
			err := classifyError(genai.APIError{Code: tc.code, Message: "nope"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClassifyError_GeminiRetryInfo(t *testing.T) {
	err := classifyError(genai.APIError{
		Code:    429,
		Message: "quota exceeded",
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.ErrorInfo", "reason": "RATE_LIMIT_EXCEEDED"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "7s"},
		},
	})

	require.ErrorIs(t, err, models.ErrLLMTransient)
	var retryAfter *models.RetryAfterError
	require.ErrorAs(t, err, &retryAfter)
	assert.Equal(t, 7*time.Second, retryAfter.Delay)
}

func TestClassifyError_NoRetryInfoMeansNoDelay(t *testing.T) {
	err := classifyError(genai.APIError{Code: 503, Message: "overloaded"})
	require.ErrorIs(t, err, models.ErrLLMTransient)
	var retryAfter *models.RetryAfterError
	assert.False(t, errors.As(err, &retryAfter))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))

	// HTTP-date form resolves to the remaining wait
	future := time.Now().Add(90 * time.Second).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	got := parseRetryAfter(future)
	assert.Greater(t, got, 80*time.Second)
	assert.LessOrEqual(t, got, 90*time.Second)

	past := time.Now().Add(-time.Minute).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}

func TestClassifyStatus_CarriesRetryAfter(t *testing.T) {
	err := classifyStatus(429, 12*time.Second, errors.New("too many requests"))
	var retryAfter *models.RetryAfterError
	require.ErrorAs(t, err, &retryAfter)
	assert.Equal(t, 12*time.Second, retryAfter.Delay)
	assert.ErrorIs(t, err, models.ErrLLMTransient)
}
