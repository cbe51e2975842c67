// Package genai provides chat-completion access to the OpenAI API and the customer-facing
// responder built on top of it.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default sampling parameters for customer replies.
const (
	DefaultModel               = "gpt-3.5-turbo"
	DefaultTemperature         = 0.7
	DefaultMaxCompletionTokens = 400
	DefaultTimeout             = 10 * time.Second
)

// ErrNoChoicesReturned is returned when the completion carries no choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChat adapts the SDK completion service to chatService.
type openaiChat struct {
	svc openai.ChatCompletionService
}

func (o openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey              string
	BaseURL             string
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Timeout             time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey overrides the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Opts) { o.Temperature = temp }
}

// WithMaxCompletionTokens caps the reply length.
func WithMaxCompletionTokens(tokens int64) Option {
	return func(o *Opts) { o.MaxCompletionTokens = tokens }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxCompletionTokens int64
	timeout             time.Duration
}

// NewClient initializes a new GenAI client. The API key falls back to $OPENAI_API_KEY and the
// model to $OPENAI_MODEL.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Temperature:         DefaultTemperature,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
		Timeout:             DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithRequestTimeout(cfg.Timeout)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewClient: configured", "model", cfg.Model, "temperature", cfg.Temperature, "max_tokens", cfg.MaxCompletionTokens, "timeout", cfg.Timeout)
	return &Client{
		chat:                openaiChat{svc: cli.Chat.Completions},
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxCompletionTokens: cfg.MaxCompletionTokens,
		timeout:             cfg.Timeout,
	}, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxCompletionTokens),
	}

	start := time.Now()
	slog.Debug("Client.GeneratePrompt: request started", "model", c.model, "prompt_chars", len(userPrompt))
	resp, err := c.chat.Create(ctx, params)
	metrics.ExternalCallDuration.WithLabelValues("completion").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Debug("Client.GeneratePrompt: request failed", "model", c.model, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("Client.GeneratePrompt: request completed", "model", c.model, "duration_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
