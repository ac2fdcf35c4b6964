package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicServer(t *testing.T, content []map[string]interface{}, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-haiku-4-5",
			"content":     content,
			"stop_reason": "end_turn",
			"usage":       map[string]interface{}{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicProviderText(t *testing.T) {
	var body map[string]interface{}
	srv := anthropicServer(t, []map[string]interface{}{
		{"type": "text", "text": "Subject: SOC2 in weeks"},
	}, &body)

	p := NewAnthropicProvider("test-key", time.Second, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := p.Invoke(context.Background(), Request{
		Instructions: "write subjects",
		ModelID:      "claude-haiku-4-5",
		Input:        "email body",
	})
	require.NoError(t, err)
	assert.Equal(t, "Subject: SOC2 in weeks", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)
	assert.Equal(t, "claude-haiku-4-5", body["model"])
	assert.NotNil(t, body["system"])
}

func TestAnthropicProviderToolUse(t *testing.T) {
	var body map[string]interface{}
	srv := anthropicServer(t, []map[string]interface{}{
		{"type": "tool_use", "id": "toolu_1", "name": "sales_agent_engaging", "input": map[string]interface{}{"input": "brief"}},
	}, &body)

	p := NewAnthropicProvider("test-key", time.Second, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := p.Invoke(context.Background(), Request{
		ModelID: "claude-haiku-4-5",
		Input:   "pick one",
		Tools:   []ToolDescriptor{{Name: "sales_agent_engaging", Description: "Write a cold sales email"}},
	})
	require.NoError(t, err)
	require.True(t, resp.IsToolCall())
	assert.Equal(t, "sales_agent_engaging", resp.ToolCall.Name)
	assert.Equal(t, "brief", resp.ToolCall.Input)

	tools, ok := body["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestAnthropicProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("bad", time.Second, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := p.Invoke(context.Background(), Request{ModelID: "claude-haiku-4-5", Input: "x"})
	ge, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, "anthropic", ge.Provider)
	assert.Contains(t, err.Error(), "401")
}
