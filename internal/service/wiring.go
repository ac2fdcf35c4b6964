package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/models"
)

// NewProvider builds the model router. Every model goes to the llm-service
// unless an Anthropic key is configured, in which case Claude models are
// called directly.
func NewProvider(cfg *config.Config, logger *zap.Logger) *llm.Router {
	fallback := llm.NewHTTPProvider(llm.HTTPProviderConfig{
		BaseURL: cfg.LLM.ServiceURL,
		Timeout: cfg.LLM.Timeout,
		Breaker: cfg.LLM.Breaker.ToConfig(),
	}, logger)
	router := llm.NewRouter(models.Catalog(cfg.LLM.Catalog), fallback)
	if cfg.LLM.AnthropicAPIKey != "" {
		router.Register(models.ProviderAnthropic, llm.NewAnthropicProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.Timeout))
	}
	return router
}

// NewTransport builds the configured mail transport.
func NewTransport(cfg *config.Config, logger *zap.Logger) (mail.Transport, error) {
	switch cfg.Delivery.Transport {
	case "", "sendgrid":
		if cfg.Delivery.SendGridAPIKey == "" {
			return nil, fmt.Errorf("delivery.transport is sendgrid but no API key is configured")
		}
		return mail.NewSendGridTransport(cfg.Delivery.SendGridAPIKey, cfg.Delivery.Breaker.ToConfig(), logger), nil
	case "log":
		return mail.NewLogTransport(logger), nil
	}
	return nil, fmt.Errorf("unknown delivery.transport %q", cfg.Delivery.Transport)
}
