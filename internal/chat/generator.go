package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// ErrGeneration wraps completion API failures.
var ErrGeneration = errors.New("generation failure")

// GeneratorConfig holds completion model parameters.
type GeneratorConfig struct {
	// BaseURL overrides the API endpoint. Empty means the public OpenAI API.
	BaseURL string

	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// Validate validates the configuration.
func (c GeneratorConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	return nil
}

// Generator produces answers from a chat completion model.
type Generator struct {
	llm    *openai.LLM
	config GeneratorConfig
}

// NewGenerator creates a Generator backed by an OpenAI-compatible
// completion API.
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
	}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return &Generator{llm: llm, config: config}, nil
}

// completionMessages builds the two-message exchange sent to the model:
// a system message carrying the instructions and context, then the
// user's query.
func completionMessages(system, query string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, query),
	}
}

// Generate runs one completion against the configured model.
func (g *Generator) Generate(ctx context.Context, system, query string) (string, error) {
	messages := completionMessages(system, query)

	resp, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return resp.Choices[0].Content, nil
}
