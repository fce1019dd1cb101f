// Package anthropic implements ports.ModelClient on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/tickler/pkg/domain"
)

// DefaultModel is used when none is configured.
const DefaultModel = "claude-3-5-sonnet-latest"

// Client is safe for concurrent use.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Config holds the client settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the API endpoint, mainly for tests and proxies.
	BaseURL string
}

// New creates a client. SDK retries are disabled; the pipeline owns retry.
func New(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 5000
	}

	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// Complete sends one Messages request.
func (c *Client) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if req.SystemInstructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstructions}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return domain.ModelResponse{}, errors.New("anthropic: response has no text content")
	}

	return domain.ModelResponse{
		Body:       []byte(text.String()),
		Model:      string(resp.Model),
		StopReason: string(resp.StopReason),
		Usage: domain.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
