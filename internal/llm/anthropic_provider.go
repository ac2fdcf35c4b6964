package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jcjurado/outreach/internal/tracing"
)

// AnthropicProvider calls the Anthropic Messages API directly.
type AnthropicProvider struct {
	client  anthropic.Client
	timeout time.Duration
}

// NewAnthropicProvider builds a provider. Extra options are appended after
// the API key, which lets tests point it at a local server.
func NewAnthropicProvider(apiKey string, timeout time.Duration, opts ...option.RequestOption) *AnthropicProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client:  anthropic.NewClient(all...),
		timeout: timeout,
	}
}

// toolInputSchema is the single-argument schema every exposed agent shares.
var toolInputSchema = anthropic.ToolInputSchemaParam{
	Properties: map[string]any{
		"input": map[string]any{
			"type":        "string",
			"description": "Message the agent should respond to",
		},
	},
	Required: []string{"input"},
}

// Invoke implements Provider.
func (p *AnthropicProvider) Invoke(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "anthropic.messages.new", "model", req.ModelID)
	defer span.End()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelID),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)),
		},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: toolInputSchema,
			},
		})
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("anthropic API status %d: %w", apiErr.StatusCode, err)
		}
		return Response{}, NewGenerationError("anthropic", req.ModelID, err)
	}

	out := Response{
		ModelUsed:    string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "tool_use":
			var args struct {
				Input string `json:"input"`
			}
			_ = json.Unmarshal(block.Input, &args)
			out.ToolCall = &ToolCall{ID: block.ID, Name: block.Name, Input: args.Input}
			return out, nil
		case "text":
			text.WriteString(block.Text)
		}
	}

	out.Text = strings.TrimSpace(text.String())
	if out.Text == "" {
		return Response{}, NewGenerationError("anthropic", req.ModelID, ErrEmptyOutput)
	}
	return out, nil
}
