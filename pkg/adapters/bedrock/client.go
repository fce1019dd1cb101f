// Package bedrock implements ports.ModelClient on Amazon Bedrock's InvokeModel
// API using the Anthropic messages body format.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultModel is the model the pipeline was designed against.
	DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	// AnthropicVersion is the body version Bedrock expects for Anthropic models.
	AnthropicVersion = "bedrock-2023-05-31"
	// DefaultMaxTokens bounds the completion length.
	DefaultMaxTokens = 5000
)

// API is the subset of the Bedrock runtime client used here.
type API interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client is safe for concurrent use.
type Client struct {
	api         API
	modelID     string
	maxTokens   int
	temperature *float64
}

// Option configures the Client.
type Option func(*Client)

// WithModel sets the Bedrock model ID.
func WithModel(id string) Option {
	return func(c *Client) {
		c.modelID = id
	}
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

// New wraps an existing runtime API.
func New(api API, opts ...Option) *Client {
	c := &Client{
		api:       api,
		modelID:   DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a runtime client from an AWS configuration.
// SDK-level retries are disabled; the pipeline owns the retry policy.
func NewFromConfig(cfg aws.Config, opts ...Option) *Client {
	api := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return New(api, opts...)
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type requestBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
}

type responseBody struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Body renders the InvokeModel payload for req.
func (c *Client) Body(req domain.ModelRequest) ([]byte, error) {
	body := requestBody{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        c.maxTokens,
		System:           req.SystemInstructions,
		Temperature:      c.temperature,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, message{
			Role:    string(m.Role),
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return json.Marshal(body)
}

// Complete performs one InvokeModel call and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	payload, err := c.Body(req)
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("bedrock: encode body: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("bedrock: invoke %s: %w", c.modelID, err)
	}

	var resp responseBody
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return domain.ModelResponse{}, fmt.Errorf("bedrock: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.ModelResponse{}, errors.New("bedrock: response has no text content")
	}

	model := resp.Model
	if model == "" {
		model = c.modelID
	}
	return domain.ModelResponse{
		Body:       []byte(text.String()),
		Model:      model,
		StopReason: resp.StopReason,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
