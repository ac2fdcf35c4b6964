package auth

import "errors"

// Scopes granted to operator tokens.
const (
	ScopeCampaignsWrite = "campaigns:write"
	ScopeRunsRead       = "runs:read"
	ScopeToolsExecute   = "tools:execute"
)

// DefaultScopes is what an operator token carries unless narrowed.
var DefaultScopes = []string{ScopeCampaignsWrite, ScopeRunsRead, ScopeToolsExecute}

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingScope  = errors.New("missing required scope")
	ErrNoPrincipal   = errors.New("missing principal")
	ErrEmptySecret   = errors.New("jwt secret is empty")
	ErrInvalidHeader = errors.New("invalid authorization header format")
)

// Principal is the authenticated caller of an operator endpoint.
type Principal struct {
	Subject   string   `json:"subject"`
	Scopes    []string `json:"scopes"`
	TokenID   string   `json:"token_id,omitempty"`
	TokenType string   `json:"token_type"`
}

// HasScope reports whether the principal was granted scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
