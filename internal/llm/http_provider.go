package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
	"github.com/jcjurado/outreach/internal/interceptors"
	"github.com/jcjurado/outreach/internal/tracing"
	"go.uber.org/zap"
)

// HTTPProvider calls the llm-service agent endpoint.
type HTTPProvider struct {
	baseURL string
	client  *circuitbreaker.HTTPWrapper
	timeout time.Duration
	logger  *zap.Logger
}

// HTTPProviderConfig configures the llm-service client.
type HTTPProviderConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

// NewHTTPProvider builds a breaker-guarded llm-service client.
func NewHTTPProvider(cfg HTTPProviderConfig, logger *zap.Logger) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &http.Client{
		Timeout:   cfg.Timeout + 5*time.Second,
		Transport: interceptors.NewWorkflowHTTPRoundTripper(nil),
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  circuitbreaker.NewHTTPWrapper(hc, "llm-service", "outreach", cfg.Breaker, logger),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

type agentQueryRequest struct {
	Query          string                 `json:"query"`
	AgentID        string                 `json:"agent_id,omitempty"`
	Context        map[string]interface{} `json:"context,omitempty"`
	SessionContext map[string]interface{} `json:"session_context,omitempty"`
	Tools          []agentTool            `json:"tools,omitempty"`
}

type agentTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type agentQueryResponse struct {
	Success      bool   `json:"success"`
	Response     string `json:"response"`
	Error        string `json:"error,omitempty"`
	ModelUsed    string `json:"model_used,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ToolCalls    []struct {
		ID        string                 `json:"id,omitempty"`
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	} `json:"tool_calls,omitempty"`
}

// Invoke implements Provider.
func (p *HTTPProvider) Invoke(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := agentQueryRequest{
		Query:   req.Input,
		AgentID: req.AgentID,
		Context: map[string]interface{}{
			"model_override": req.ModelID,
			"max_tokens":     maxTokens,
		},
		SessionContext: map[string]interface{}{
			"system_prompt": req.Instructions,
		},
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, agentTool{Name: t.Name, Description: t.Description})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, NewGenerationError("llm-service", req.ModelID, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := p.baseURL + "/agent/query"
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, NewGenerationError("llm-service", req.ModelID, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.AgentID != "" {
		httpReq.Header.Set("X-Agent-ID", req.AgentID)
	}
	tracing.InjectTraceparent(ctx, httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, NewGenerationError("llm-service", req.ModelID, fmt.Errorf("LLM service call failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, NewGenerationError("llm-service", req.ModelID,
			fmt.Errorf("HTTP %d from LLM service: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out agentQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, NewGenerationError("llm-service", req.ModelID, fmt.Errorf("failed to parse LLM response: %w", err))
	}
	if !out.Success {
		return Response{}, NewGenerationError("llm-service", req.ModelID, fmt.Errorf("LLM service returned success=false: %s", out.Error))
	}

	result := Response{
		ModelUsed:    out.ModelUsed,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
	}
	if len(out.ToolCalls) > 0 {
		tc := out.ToolCalls[0]
		input, _ := tc.Arguments["input"].(string)
		result.ToolCall = &ToolCall{ID: tc.ID, Name: tc.Name, Input: input}
		return result, nil
	}

	result.Text = strings.TrimSpace(out.Response)
	if result.Text == "" {
		return Response{}, NewGenerationError("llm-service", req.ModelID, ErrEmptyOutput)
	}
	return result, nil
}
