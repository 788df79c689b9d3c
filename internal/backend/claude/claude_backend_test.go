package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examsolver/internal/backend"
	"examsolver/internal/backend/claude"
	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/port"
)

var request = port.ReasoningRequest{
	ProblemID: 1,
	Stem:      "Which is prime?",
	Choices: []domain.Choice{
		{Label: "1", Text: "4"},
		{Label: "2", Text: "6"},
		{Label: "3", Text: "7"},
	},
}

func newTestBackend(serverURL string) *claude.Backend {
	return claude.NewBackend(&config.BackendProviderConfig{
		Provider:    "claude",
		APIKey:      "test-api-key",
		Model:       "claude-sonnet-4-20250514",
		BaseURL:     serverURL,
		TimeoutSecs: 5,
	})
}

func TestClaudeBackend_Answer_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(512), reqBody["max_tokens"])
		messages := reqBody["messages"].([]interface{})
		assert.Len(t, messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",` +
			`"content":[{"type":"text","text":"3"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":10,"output_tokens":1}}`))
	}))
	defer server.Close()

	out, err := newTestBackend(server.URL).Answer(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "3", out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
}

func TestClaudeBackend_Answer_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Answer(context.Background(), request)
	require.Error(t, err)
	d, ok := backend.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestClaudeBackend_Answer_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"oops"}}`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Answer(context.Background(), request)
	var tr *backend.TransientError
	require.True(t, errors.As(err, &tr))
	assert.True(t, backend.IsTransient(err))
}

func TestClaudeBackend_Answer_UnauthorizedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Answer(context.Background(), request)
	var perm *backend.PermanentError
	require.True(t, errors.As(err, &perm))
	assert.False(t, backend.IsTransient(err))
}

func TestClaudeBackend_RegistersProvider(t *testing.T) {
	assert.Contains(t, backend.Providers(), "claude")
}
