// -----------------------------------------------------------------------
// LLM provider plumbing - error classification shared by all providers
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/percipio/internal/models"
	"google.golang.org/genai"
)

// classifyError folds a provider failure into the transient/permanent split
// the dispatcher retries on. Timeouts, 429 and 5xx are transient; other 4xx
// are permanent. When a throttled response names its own retry delay, the
// classified error carries it so the retry loop can honour it.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrLLMTransient, err)
	}

	if code, ok := statusCodeOf(err); ok {
		return classifyStatus(code, retryAfterOf(err), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", models.ErrLLMTransient, err)
	}

	// Unknown failure mode: assume transient so a retry gets a chance
	return fmt.Errorf("%w: %v", models.ErrLLMTransient, err)
}

func statusCodeOf(err error) (int, bool) {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}

	return 0, false
}

// retryAfterOf extracts the server-supplied retry delay, when present:
// the Retry-After response header on Anthropic errors, the
// google.rpc.RetryInfo detail on Gemini errors.
func retryAfterOf(err error) time.Duration {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) && anthropicErr.Response != nil {
		return parseRetryAfter(anthropicErr.Response.Header.Get("Retry-After"))
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryDelayFromDetails(genaiErr.Details)
	}

	return 0
}

// parseRetryAfter handles both Retry-After forms: delay-seconds and HTTP-date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// retryDelayFromDetails scans error details for google.rpc.RetryInfo and its
// retryDelay value ("4s" style duration string).
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, detail := range details {
		detailType, _ := detail["@type"].(string)
		if !strings.HasSuffix(detailType, "google.rpc.RetryInfo") {
			continue
		}
		if raw, ok := detail["retryDelay"].(string); ok {
			if d, err := time.ParseDuration(raw); err == nil && d > 0 {
				return d
			}
		}
	}
	return 0
}

func classifyStatus(code int, retryAfter time.Duration, err error) error {
	switch {
	case code == 408 || code == 429 || code >= 500:
		transient := fmt.Errorf("%w: status %d: %v", models.ErrLLMTransient, code, err)
		if retryAfter > 0 {
			return &models.RetryAfterError{Delay: retryAfter, Err: transient}
		}
		return transient
	case code >= 400:
		return fmt.Errorf("%w: status %d: %v", models.ErrLLMPermanent, code, err)
	default:
		return fmt.Errorf("%w: status %d: %v", models.ErrLLMTransient, code, err)
	}
}
