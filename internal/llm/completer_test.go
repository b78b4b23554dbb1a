package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, handler func(req chatRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_SendsSingleUserMessage(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, func(req chatRequest) (int, string) {
		got = req
		return http.StatusOK, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"action_type\":\"view\"}"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`
	})

	c, err := NewCompleter(&Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model"})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), "instruction and prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"action_type":"view"}`, reply)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "instruction and prompt", got.Messages[0].Content)
}

func TestComplete_NoChoicesIsEmptyReply(t *testing.T) {
	srv := newChatServer(t, func(chatRequest) (int, string) {
		return http.StatusOK, `{"id":"1","object":"chat.completion","choices":[]}`
	})

	c, err := NewCompleter(&Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestComplete_ServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := newChatServer(t, func(chatRequest) (int, string) {
		calls++
		return http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`
	})

	c, err := NewCompleter(&Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewCompleter_Defaults(t *testing.T) {
	_, err := NewCompleter(&Config{})
	assert.Error(t, err, "api key is required")

	c, err := NewCompleter(&Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.config.Model)
	assert.Equal(t, 60*time.Second, c.config.Timeout)
}
