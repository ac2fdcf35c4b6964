// Package pricing estimates model spend from token counts. The price table
// comes from the llm.pricing config section and is swapped on reload.
package pricing

import (
	"fmt"
	"sync"

	"github.com/jcjurado/outreach/internal/metrics"
)

// ModelPrice is the USD price of one model per 1K tokens.
type ModelPrice struct {
	InputPer1K    float64 `mapstructure:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K   float64 `mapstructure:"output_per_1k" yaml:"output_per_1k"`
	CombinedPer1K float64 `mapstructure:"combined_per_1k" yaml:"combined_per_1k"`
}

// Config is the llm.pricing section.
type Config struct {
	DefaultPer1K float64               `mapstructure:"default_per_1k" yaml:"default_per_1k"`
	Models       map[string]ModelPrice `mapstructure:"models" yaml:"models"`
}

// Validate rejects negative prices.
func (c Config) Validate() error {
	if c.DefaultPer1K < 0 {
		return fmt.Errorf("default_per_1k must be >= 0")
	}
	for name, m := range c.Models {
		if m.InputPer1K < 0 || m.OutputPer1K < 0 || m.CombinedPer1K < 0 {
			return fmt.Errorf("negative price for model %s", name)
		}
	}
	return nil
}

// fallbackPer1K applies when neither the model nor a default is configured.
const fallbackPer1K = 0.002

var (
	mu     sync.RWMutex
	loaded = Config{}
)

// Configure installs a price table. Safe to call while costs are computed.
func Configure(cfg Config) {
	cp := Config{DefaultPer1K: cfg.DefaultPer1K, Models: make(map[string]ModelPrice, len(cfg.Models))}
	for k, v := range cfg.Models {
		cp.Models[k] = v
	}
	mu.Lock()
	loaded = cp
	mu.Unlock()
}

func get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}

// DefaultPerToken returns default combined price per token
func DefaultPerToken() float64 {
	if d := get().DefaultPer1K; d > 0 {
		return d / 1000.0
	}
	return fallbackPer1K / 1000.0
}

// PricePerTokenForModel returns combined price per token for a model if available
func PricePerTokenForModel(model string) (float64, bool) {
	if model == "" {
		return 0, false
	}
	m, ok := get().Models[model]
	if !ok {
		return 0, false
	}
	if m.CombinedPer1K > 0 {
		return m.CombinedPer1K / 1000.0, true
	}
	if m.InputPer1K > 0 && m.OutputPer1K > 0 {
		return ((m.InputPer1K + m.OutputPer1K) / 2.0) / 1000.0, true
	}
	return 0, false
}

// CostForSplit computes cost using input/output token split when available.
// Falls back to combined pricing or default if model not found.
func CostForSplit(model string, inputTokens, outputTokens int) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	if m, ok := get().Models[model]; ok {
		if m.InputPer1K > 0 && m.OutputPer1K > 0 {
			return (float64(inputTokens)/1000.0)*m.InputPer1K + (float64(outputTokens)/1000.0)*m.OutputPer1K
		}
		if m.CombinedPer1K > 0 {
			return (float64(inputTokens+outputTokens) / 1000.0) * m.CombinedPer1K
		}
	}
	if model == "" {
		metrics.PricingFallbacks.WithLabelValues("missing_model").Inc()
	} else {
		metrics.PricingFallbacks.WithLabelValues("unknown_model").Inc()
	}
	return float64(inputTokens+outputTokens) * DefaultPerToken()
}
