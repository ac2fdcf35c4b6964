package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/jcjurado/outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) Provider {
	return ProviderFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{Text: name}, nil
	})
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(models.Catalog{"house-claude": "anthropic"}, named("service"))
	r.Register(models.ProviderAnthropic, named("anthropic"))

	cases := map[string]string{
		"claude-haiku-4-5": "anthropic",
		"house-claude":     "anthropic",
		"gpt-4o-mini":      "service",
		"mystery":          "service",
	}
	for model, want := range cases {
		resp, err := r.Invoke(context.Background(), Request{ModelID: model})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Text, model)
	}
}

func TestRouterWithoutFallback(t *testing.T) {
	r := NewRouter(nil, nil)
	_, err := r.Invoke(context.Background(), Request{ModelID: "gpt-4o-mini"})
	ge, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.True(t, errors.Is(ge, ErrNoProvider))
}
