package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
)

// ClaudeService implements the LLMService interface using the Anthropic API.
type ClaudeService struct {
	config *common.ClaudeConfig
	logger arbor.ILogger
	client *anthropic.Client
}

// NewClaudeService creates a new Claude LLM service instance
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: claude.api_key", models.ErrConfigMissing)
	}
	if config.Model == "" {
		config.Model = "claude-haiku-4-5"
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", config.MaxTokens).
		Float32("temperature", config.Temperature).
		Msg("Claude LLM service initialized")

	return &ClaudeService{
		config: config,
		logger: logger,
		client: &client,
	}, nil
}

// Complete generates one completion for a system+user message pair.
func (s *ClaudeService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", models.ErrLLMPermanent)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response from Claude", models.ErrLLMTransient)
	}

	usage := models.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("Claude completion finished")

	return &interfaces.CompletionResponse{
		Text:  text.String(),
		Model: s.config.Model,
		Usage: usage,
	}, nil
}

// Provider returns the provider name
func (s *ClaudeService) Provider() string {
	return "claude"
}

// Close releases resources
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}
