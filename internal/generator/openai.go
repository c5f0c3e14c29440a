// Package generator talks to remote text generation services.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4o-mini"

// ErrEmptyResponse is returned when the service answers without any text
var ErrEmptyResponse = errors.New("empty generation response")

// OpenAIConfig configures the OpenAI-compatible generator
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty for api.openai.com
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAI generates text through the chat completions API
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a generator. The API key is required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Generate sends prompt as a single user message and returns the reply text
func (g *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(g.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("generation request status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("generation request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Model returns the model identifier recorded on generated questions
func (g *OpenAI) Model() string {
	return g.model
}
