package llm

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
)

// NewLLMService builds the configured provider wrapped with rate limiting
// and the global in-flight cap. This is the single shared client the whole
// process uses.
func NewLLMService(config *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	var (
		inner     interfaces.LLMService
		rateLimit string
		err       error
	)

	switch config.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		inner, err = NewClaudeService(&config.Claude, logger)
		rateLimit = config.Claude.RateLimit
	case common.LLMProviderGemini:
		inner, err = NewGeminiService(&config.Gemini, logger)
		rateLimit = config.Gemini.RateLimit
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLM.DefaultProvider)
	}
	if err != nil {
		return nil, err
	}

	var minInterval time.Duration
	if rateLimit != "" {
		minInterval, err = time.ParseDuration(rateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid rate_limit duration %q: %w", rateLimit, err)
		}
	}

	logger.Info().
		Str("provider", inner.Provider()).
		Dur("min_interval", minInterval).
		Int("max_in_flight", config.Dispatcher.GlobalLLMConcurrency).
		Msg("LLM service ready")

	return NewLimitedService(inner, minInterval, config.Dispatcher.GlobalLLMConcurrency, logger), nil
}
