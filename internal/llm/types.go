// Package llm is the text-generation capability consumed by every agent:
// instructions + model + optional tools + input in, text or a tool call out.
package llm

import "context"

// ToolDescriptor advertises a callable tool to the model.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolCall is the model asking to invoke one of the supplied tools.
type ToolCall struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// Request is one agent call.
type Request struct {
	Instructions string           `json:"instructions"`
	ModelID      string           `json:"model_id"`
	Input        string           `json:"input"`
	Tools        []ToolDescriptor `json:"tools,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	// AgentID labels the call for the provider's own logs.
	AgentID string `json:"agent_id,omitempty"`
}

// Response carries either Text or a ToolCall, never both.
type Response struct {
	Text         string    `json:"text,omitempty"`
	ToolCall     *ToolCall `json:"tool_call,omitempty"`
	ModelUsed    string    `json:"model_used,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
}

// IsToolCall reports whether the model asked for a tool instead of answering.
func (r Response) IsToolCall() bool { return r.ToolCall != nil }

// Provider performs agent calls against one backend.
type Provider interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

func (f ProviderFunc) Invoke(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

const defaultMaxTokens = 1024
