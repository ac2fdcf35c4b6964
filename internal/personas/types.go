package personas

import (
	"fmt"
	"strings"
)

// Kind enumerates the generation personas. The set is closed: configuration
// may reorder, subset or reword them but cannot introduce new kinds.
type Kind string

const (
	KindProfessional Kind = "professional"
	KindEngaging     Kind = "engaging"
	KindDirect       Kind = "direct"
)

// Kinds returns every persona kind in canonical dispatch order.
func Kinds() []Kind {
	return []Kind{KindProfessional, KindEngaging, KindDirect}
}

// ParseKind maps a config value onto a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Persona is the immutable bundle a GenerationAgent is built from.
// ID doubles as the generator identifier recorded on candidates.
type Persona struct {
	ID              string `json:"id"`
	Kind            Kind   `json:"kind"`
	DisplayName     string `json:"display_name"`
	Instructions    string `json:"instructions"`
	ModelID         string `json:"model_id"`
	ToolName        string `json:"tool_name"`
	ToolDescription string `json:"tool_description"`
}

// Override carries the config-supplied adjustments for one persona.
type Override struct {
	Kind         string `mapstructure:"kind" yaml:"kind" json:"kind"`
	DisplayName  string `mapstructure:"display_name" yaml:"display_name" json:"display_name,omitempty"`
	Instructions string `mapstructure:"instructions" yaml:"instructions" json:"instructions,omitempty"`
	Model        string `mapstructure:"model" yaml:"model" json:"model,omitempty"`
}

// IDs returns the generator identifiers of a persona set, in order.
func IDs(ps []Persona) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
