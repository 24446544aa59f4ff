package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the audit pipeline. Handlers and the orchestrator match
// on these sentinels with errors.Is; user-visible messages wrap them with
// context via fmt.Errorf("...: %w", err).
var (
	// ErrNotFound indicates an unknown job ID.
	ErrNotFound = errors.New("not found")

	// ErrIllegalState indicates a transition attempted from a terminal state.
	ErrIllegalState = errors.New("illegal state transition")

	// ErrCrawlFatal indicates the root URL could not be fetched.
	ErrCrawlFatal = errors.New("crawl fatal: root unreachable")

	// ErrLLMTransient marks retryable LLM failures (timeout, 429, 5xx).
	ErrLLMTransient = errors.New("llm transient failure")

	// ErrLLMPermanent marks non-retryable LLM failures (4xx other than 429).
	ErrLLMPermanent = errors.New("llm permanent failure")

	// ErrParseFailed indicates the model output was not valid JSON after the
	// tolerant repair pipeline ran.
	ErrParseFailed = errors.New("parse failed")

	// ErrInsufficientCoverage indicates fewer than the minimum number of
	// modules completed successfully, so no report can be produced.
	ErrInsufficientCoverage = errors.New("insufficient coverage")

	// ErrDeadline indicates the per-job wall-clock ceiling was exceeded.
	ErrDeadline = errors.New("deadline exceeded")

	// ErrCancelled indicates cooperative cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrConfigMissing is fatal at startup when required configuration
	// (API key, storage path) is not bound.
	ErrConfigMissing = errors.New("required configuration missing")
)

// RetryAfterError wraps a transient LLM failure carrying the retry delay the
// provider asked for (429 Retry-After, or the RetryInfo detail on gRPC-style
// errors). Retry loops prefer this delay over their computed backoff.
type RetryAfterError struct {
	Delay time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.Delay)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }
