package personas

import (
	"fmt"
	"strings"
)

// DefaultToolDescription is shared by every persona tool.
const DefaultToolDescription = "Write a cold sales email"

var defaultStyles = map[Kind]struct {
	name  string
	style string
}{
	KindProfessional: {"Professional Sales Agent", "You write professional, serious cold emails."},
	KindEngaging:     {"Engaging Sales Agent", "You write witty, engaging cold emails that are likely to get a response."},
	KindDirect:       {"Direct Sales Agent", "You write concise, to the point cold emails."},
}

// Default builds the stock persona for a kind.
func Default(kind Kind, companyContext, model string) Persona {
	st := defaultStyles[kind]
	instructions := st.style
	if ctx := strings.TrimSpace(companyContext); ctx != "" {
		instructions = ctx + " " + st.style
	}
	return Persona{
		ID:              string(kind),
		Kind:            kind,
		DisplayName:     st.name,
		Instructions:    instructions,
		ModelID:         model,
		ToolName:        ToolName(kind),
		ToolDescription: DefaultToolDescription,
	}
}

// ToolName is the name a persona is exposed under when offered as a tool.
func ToolName(kind Kind) string {
	return "sales_agent_" + string(kind)
}

// Resolve expands configuration into the ordered persona set for a run.
// With no overrides every kind is used in canonical order.
func Resolve(companyContext, defaultModel string, overrides []Override) ([]Persona, error) {
	if len(overrides) == 0 {
		out := make([]Persona, 0, len(Kinds()))
		for _, k := range Kinds() {
			p := Default(k, companyContext, defaultModel)
			if p.ModelID == "" {
				return nil, fmt.Errorf("%w: %s", ErrNoModel, k)
			}
			out = append(out, p)
		}
		return out, nil
	}

	seen := make(map[Kind]bool, len(overrides))
	out := make([]Persona, 0, len(overrides))
	for _, o := range overrides {
		kind, err := ParseKind(o.Kind)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
		}
		seen[kind] = true

		p := Default(kind, companyContext, defaultModel)
		if o.DisplayName != "" {
			p.DisplayName = o.DisplayName
		}
		if o.Instructions != "" {
			p.Instructions = o.Instructions
		}
		if o.Model != "" {
			p.ModelID = o.Model
		}
		if p.ModelID == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, kind)
		}
		out = append(out, p)
	}
	return out, nil
}
