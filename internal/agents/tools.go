package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcjurado/outreach/internal/llm"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Toolbox exposes generation agents as named tools. Invoking a tool is the
// same call as Generate on the agent behind it.
type Toolbox struct {
	order  []string
	byName map[string]*GenerationAgent
}

// NewToolbox indexes agents by their persona tool name.
func NewToolbox(agents ...*GenerationAgent) (*Toolbox, error) {
	tb := &Toolbox{byName: make(map[string]*GenerationAgent, len(agents))}
	for _, a := range agents {
		name := a.Persona().ToolName
		if _, dup := tb.byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		tb.byName[name] = a
		tb.order = append(tb.order, name)
	}
	return tb, nil
}

// Descriptors lists the tools in registration order.
func (tb *Toolbox) Descriptors() []llm.ToolDescriptor {
	out := make([]llm.ToolDescriptor, 0, len(tb.order))
	for _, name := range tb.order {
		out = append(out, llm.ToolDescriptor{
			Name:        name,
			Description: tb.byName[name].Persona().ToolDescription,
		})
	}
	return out
}

// Lookup returns the agent registered under name.
func (tb *Toolbox) Lookup(name string) (*GenerationAgent, bool) {
	a, ok := tb.byName[name]
	return a, ok
}

// Invoke runs the named tool on input.
func (tb *Toolbox) Invoke(ctx context.Context, name, input string) (string, error) {
	a, ok := tb.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return a.Generate(ctx, input)
}

// Dispatch runs a model-issued tool call.
func (tb *Toolbox) Dispatch(ctx context.Context, call llm.ToolCall) (string, error) {
	return tb.Invoke(ctx, call.Name, call.Input)
}
