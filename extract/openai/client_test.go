package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/config"
	"github.com/warp/workfacts/facts"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{name: "valid config", cfg: config.LLMConfig{APIKey: "test-key"}},
		{name: "valid config with model", cfg: config.LLMConfig{APIKey: "test-key", Model: "gpt-4o"}},
		{name: "missing API key", cfg: config.LLMConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "API key is required")
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {}  ", `{}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSONResponse(tt.in))
	}
}

func TestSystemPrompt_ListsEveryField(t *testing.T) {
	p := systemPrompt()
	for _, k := range facts.ExternalKeys() {
		assert.Contains(t, p, k)
	}
}

// fakeOpenAI answers /chat/completions with content and captures the request.
func fakeOpenAI(t *testing.T, content string) (*httptest.Server, *map[string]any) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestExtract(t *testing.T) {
	srv, got := fakeOpenAI(t, "```json\n{\"leave_days\": 12.5, \"mood\": \"tired\", \"salary\": null, \"next_bonus_date\": \"2025-09-22\"}\n```")

	c, err := NewClient(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := c.Extract(context.Background(), "I have 12.5 leave days left")
	require.NoError(t, err)

	// THEN: unknown keys and nulls are dropped
	assert.Equal(t, map[string]any{"leave_days": 12.5, "next_bonus_date": "2025-09-22"}, out)

	assert.Equal(t, "gpt-4o-mini", (*got)["model"])
	msgs := (*got)["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "I have 12.5 leave days left", msgs[1].(map[string]any)["content"])
}

func TestExtract_BadJSON(t *testing.T) {
	srv, _ := fakeOpenAI(t, "sorry, I can't")
	c, err := NewClient(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing extraction JSON")
}

func TestExtract_EmptyText(t *testing.T) {
	c, err := NewClient(config.LLMConfig{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), "   ")
	assert.True(t, facts.IsClientError(err))
}
