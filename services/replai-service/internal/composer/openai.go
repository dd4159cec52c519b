package composer

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/stoik/replai/services/replai-service/internal/config"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator builds a generator from the AI configuration.
func NewOpenAIGenerator(cfg config.AIConfig, logger *log.Logger) *OpenAIGenerator {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	)
	return &OpenAIGenerator{
		client:  &client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("model returned no completion choices")
	}

	g.logger.Debug("Generated reply", "model", g.model, "duration", time.Since(start))
	return completion.Choices[0].Message.Content, nil
}
