package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RawInput is the unstructured text submitted to a run.
// It is created at pipeline entry and never modified.
type RawInput struct {
	Text string `json:"raw_body" yaml:"raw_body" mapstructure:"raw_body"`
}

// Message is a single conversation turn sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelRequest is the fully formed request for the model service.
// It is built once per run and re-sent unchanged on every retry.
type ModelRequest struct {
	SystemInstructions string    `json:"system"`
	Messages           []Message `json:"messages"`
	// ReferenceTime is the instant embedded into the instructions.
	ReferenceTime time.Time `json:"reference_time"`
}

// Usage reports token accounting when the provider exposes it.
type Usage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

// ModelResponse is the opaque completion returned by the model service.
// Body holds the text the model produced; only the parser interprets it.
type ModelResponse struct {
	Body       []byte `json:"body"`
	Model      string `json:"model,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      Usage  `json:"usage"`
}
