package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/interfaces"
	"github.com/ternarybob/percipio/internal/models"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using Google Gemini.
type GeminiService struct {
	config *common.GeminiConfig
	logger arbor.ILogger
	client *genai.Client
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini.api_key", models.ErrConfigMissing)
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Float32("temperature", config.Temperature).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config: config,
		logger: logger,
		client: client,
	}, nil
}

// Complete generates one completion for a system+user message pair.
func (s *GeminiService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", models.ErrLLMPermanent)
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.config.Temperature
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	} else if s.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(s.config.MaxTokens)
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(req.Prompt)},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, genConfig)
	if err != nil {
		return nil, classifyError(err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response from Gemini", models.ErrLLMTransient)
	}

	var usage models.TokenUsage
	if resp.UsageMetadata != nil {
		usage = models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("Gemini completion finished")

	return &interfaces.CompletionResponse{
		Text:  text.String(),
		Model: s.config.Model,
		Usage: usage,
	}, nil
}

// Provider returns the provider name
func (s *GeminiService) Provider() string {
	return "gemini"
}

// Close releases resources
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
