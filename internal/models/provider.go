package models

import "strings"

// Provider names returned by detection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderDeepSeek  = "deepseek"
	ProviderMistral   = "mistral"
	ProviderOllama    = "ollama"
	ProviderUnknown   = "unknown"
)

// Catalog maps explicit model identifiers to a provider. Entries win over
// pattern matching, so a self-hosted "gpt-4o-mini" proxy can be pinned to a
// different backend from config.
type Catalog map[string]string

// Detect resolves the provider for a model, consulting the catalog first.
func (c Catalog) Detect(model string) string {
	if model == "" {
		return ProviderUnknown
	}
	if p, ok := c[model]; ok && p != "" {
		return strings.ToLower(p)
	}
	if p, ok := c[strings.ToLower(model)]; ok && p != "" {
		return strings.ToLower(p)
	}
	return detectProviderFromPattern(model)
}

// DetectProvider determines the provider from a model name using naming
// conventions only.
func DetectProvider(model string) string {
	return Catalog(nil).Detect(model)
}

func detectProviderFromPattern(model string) string {
	ml := strings.ToLower(model)

	if strings.Contains(ml, "gpt-") || strings.HasPrefix(ml, "o1") ||
		strings.HasPrefix(ml, "o3") || strings.Contains(ml, "turbo") {
		return ProviderOpenAI
	}

	if strings.Contains(ml, "claude") || strings.Contains(ml, "opus") ||
		strings.Contains(ml, "sonnet") || strings.Contains(ml, "haiku") {
		return ProviderAnthropic
	}

	if strings.Contains(ml, "gemini") {
		return ProviderGoogle
	}

	if strings.Contains(ml, "deepseek") {
		return ProviderDeepSeek
	}

	// Mistral before llama, some names overlap
	if strings.Contains(ml, "mistral") || strings.Contains(ml, "mixtral") {
		return ProviderMistral
	}

	if strings.Contains(ml, "llama") {
		return ProviderOllama
	}

	return ProviderUnknown
}
