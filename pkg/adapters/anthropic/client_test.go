package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/tickler/pkg/adapters/anthropic"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	var apiKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), "unexpected path %s", r.URL.Path)
		apiKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-latest",
			"content": [{"type": "text", "text": "{\"function_calls\": []}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 11, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client := anthropic.New(anthropic.Config{APIKey: "sk-test", BaseURL: srv.URL, MaxTokens: 256})
	resp, err := client.Complete(context.Background(), domain.ModelRequest{
		SystemInstructions: "system text",
		Messages:           []domain.Message{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"function_calls": []}`, string(resp.Body))
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.EqualValues(t, 11, resp.Usage.InputTokens)

	assert.Equal(t, "sk-test", apiKey)
	assert.Equal(t, anthropic.DefaultModel, got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	assert.Contains(t, got, "system")
}

func TestComplete_ServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
	}))
	defer srv.Close()

	client := anthropic.New(anthropic.Config{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), domain.ModelRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "the SDK must not retry on its own")
}
