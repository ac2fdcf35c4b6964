package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ContextKey is the key type for context values
type ContextKey string

const (
	// PrincipalContextKey is the context key for the authenticated caller
	PrincipalContextKey ContextKey = "principal"
)

// devPrincipal is attached when authentication is disabled.
var devPrincipal = &Principal{Subject: "dev", Scopes: DefaultScopes, TokenType: "none"}

// Middleware provides bearer-token authentication for HTTP handlers.
type Middleware struct {
	jwtManager *JWTManager
	skipAuth   bool
	logger     *zap.Logger
}

// NewMiddleware creates a new authentication middleware. skipAuth attaches a
// development principal to every request.
func NewMiddleware(jwtManager *JWTManager, skipAuth bool, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{jwtManager: jwtManager, skipAuth: skipAuth || jwtManager == nil, logger: logger}
}

// HTTPMiddleware rejects requests without a valid token that carries every
// scope in required.
func (m *Middleware) HTTPMiddleware(next http.Handler, required ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipAuth {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), devPrincipal)))
			return
		}

		token, err := ExtractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		principal, err := m.jwtManager.ValidateAccessToken(token)
		if err != nil {
			m.logger.Debug("Rejected token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		for _, scope := range required {
			if !principal.HasScope(scope) {
				writeError(w, http.StatusForbidden, "missing required scope: "+scope)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// GetPrincipal extracts the caller from context
func GetPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	if !ok {
		return nil, ErrNoPrincipal
	}
	return p, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireScopes checks that the caller on ctx holds every scope.
func RequireScopes(ctx context.Context, scopes ...string) error {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return err
	}
	for _, s := range scopes {
		if !p.HasScope(s) {
			return fmt.Errorf("%w: %s", ErrMissingScope, s)
		}
	}
	return nil
}
