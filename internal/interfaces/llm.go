package interfaces

import (
	"context"

	"github.com/ternarybob/percipio/internal/models"
)

// CompletionRequest is a provider-agnostic chat completion request: one
// system message plus one user message, per the prompt-template contract.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// CompletionResponse carries the generated text and reported token usage.
type CompletionResponse struct {
	Text  string
	Model string
	Usage models.TokenUsage
}

// LLMService is a pluggable chat-completion provider. Implementations must
// honour context cancellation and classify failures with models.ErrLLMTransient
// (timeouts, 429, 5xx) or models.ErrLLMPermanent (other 4xx) so the dispatcher
// can decide whether to retry.
type LLMService interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Provider() string
	Close() error
}
