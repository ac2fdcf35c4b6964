package config

import (
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
	"github.com/jcjurado/outreach/internal/personas"
	"github.com/jcjurado/outreach/internal/policy"
	"github.com/jcjurado/outreach/internal/pricing"
	"github.com/jcjurado/outreach/internal/tracing"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. OUTREACH_TEMPORAL_HOST_PORT.
const EnvPrefix = "OUTREACH"

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Temporal      TemporalConfig      `mapstructure:"temporal" yaml:"temporal"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Campaign      CampaignConfig      `mapstructure:"campaign" yaml:"campaign"`
	Selection     AgentConfig         `mapstructure:"selection" yaml:"selection"`
	Delivery      DeliveryConfig      `mapstructure:"delivery" yaml:"delivery"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration" yaml:"orchestration"`
	Webhook       WebhookConfig       `mapstructure:"webhook" yaml:"webhook"`
	Redis         RedisConfig         `mapstructure:"redis" yaml:"redis"`
	Postgres      PostgresConfig      `mapstructure:"postgres" yaml:"postgres"`
	Policy        policy.Config       `mapstructure:"policy" yaml:"policy"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Tracing       tracing.Config      `mapstructure:"tracing" yaml:"tracing"`
}

type ServiceConfig struct {
	HTTPPort        int           `mapstructure:"http_port" yaml:"http_port"`
	AdminPort       int           `mapstructure:"admin_port" yaml:"admin_port"`
	MetricsPort     int           `mapstructure:"metrics_port" yaml:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type TemporalConfig struct {
	HostPort    string        `mapstructure:"host_port" yaml:"host_port"`
	Namespace   string        `mapstructure:"namespace" yaml:"namespace"`
	TaskQueue   string        `mapstructure:"task_queue" yaml:"task_queue"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

type LLMConfig struct {
	ServiceURL      string                  `mapstructure:"service_url" yaml:"service_url"`
	AnthropicAPIKey string                  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	Timeout         time.Duration           `mapstructure:"timeout" yaml:"timeout"`
	Catalog         map[string]string       `mapstructure:"catalog" yaml:"catalog"`
	Breaker         circuitbreaker.Settings `mapstructure:"breaker" yaml:"breaker"`
	Pricing         pricing.Config          `mapstructure:"pricing" yaml:"pricing"`
}

// CampaignConfig selects and words the generation personas.
type CampaignConfig struct {
	CompanyContext string              `mapstructure:"company_context" yaml:"company_context"`
	DefaultModel   string              `mapstructure:"default_model" yaml:"default_model"`
	Personas       []personas.Override `mapstructure:"personas" yaml:"personas"`
}

// AgentConfig configures a single-purpose agent; empty fields use defaults.
type AgentConfig struct {
	Instructions string `mapstructure:"instructions" yaml:"instructions"`
	Model        string `mapstructure:"model" yaml:"model"`
}

type DeliveryConfig struct {
	Sender    string `mapstructure:"sender" yaml:"sender"`
	Recipient string `mapstructure:"recipient" yaml:"recipient"`
	// Transport is "sendgrid" or "log".
	Transport      string                  `mapstructure:"transport" yaml:"transport"`
	SendGridAPIKey string                  `mapstructure:"sendgrid_api_key" yaml:"sendgrid_api_key"`
	Subject        AgentConfig             `mapstructure:"subject" yaml:"subject"`
	HTML           AgentConfig             `mapstructure:"html" yaml:"html"`
	// FallbackSubject replaces a failed subject synthesis when set.
	FallbackSubject string                  `mapstructure:"fallback_subject" yaml:"fallback_subject"`
	Breaker         circuitbreaker.Settings `mapstructure:"breaker" yaml:"breaker"`
}

type OrchestrationConfig struct {
	GenerationRetries    int           `mapstructure:"generation_retries" yaml:"generation_retries"`
	SelectionRetries     int           `mapstructure:"selection_retries" yaml:"selection_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
	Timeouts             Timeouts      `mapstructure:"timeouts" yaml:"timeouts"`
}

// Timeouts bounds every external call of a run.
type Timeouts struct {
	Generation time.Duration `mapstructure:"generation" yaml:"generation" json:"generation"`
	Selection  time.Duration `mapstructure:"selection" yaml:"selection" json:"selection"`
	Subject    time.Duration `mapstructure:"subject" yaml:"subject" json:"subject"`
	Format     time.Duration `mapstructure:"format" yaml:"format" json:"format"`
	Policy     time.Duration `mapstructure:"policy" yaml:"policy" json:"policy"`
	Send       time.Duration `mapstructure:"send" yaml:"send" json:"send"`
	Run        time.Duration `mapstructure:"run" yaml:"run" json:"run"`
}

type WebhookConfig struct {
	Async          bool          `mapstructure:"async" yaml:"async"`
	DedupeTTL      time.Duration `mapstructure:"dedupe_ttl" yaml:"dedupe_ttl"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout" yaml:"enqueue_timeout"`
	SyncTimeout    time.Duration `mapstructure:"sync_timeout" yaml:"sync_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type PostgresConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password"`
	Database     string `mapstructure:"database" yaml:"database"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.http_port", 8080)
	v.SetDefault("service.admin_port", 8081)
	v.SetDefault("service.metrics_port", 2112)
	v.SetDefault("service.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "outreach")
	v.SetDefault("temporal.dial_timeout", "2m")

	v.SetDefault("llm.service_url", "http://llm-service:8000")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("campaign.company_context", "")
	v.SetDefault("campaign.default_model", "gpt-4o-mini")

	v.SetDefault("selection.instructions", "")
	v.SetDefault("selection.model", "")

	v.SetDefault("delivery.sender", "")
	v.SetDefault("delivery.recipient", "")
	v.SetDefault("delivery.transport", "sendgrid")
	v.SetDefault("delivery.sendgrid_api_key", "")
	v.SetDefault("delivery.subject.instructions", "")
	v.SetDefault("delivery.subject.model", "")
	v.SetDefault("delivery.html.instructions", "")
	v.SetDefault("delivery.html.model", "")
	v.SetDefault("delivery.fallback_subject", "")

	v.SetDefault("orchestration.generation_retries", 1)
	v.SetDefault("orchestration.selection_retries", 1)
	v.SetDefault("orchestration.retry_initial_interval", "1s")
	v.SetDefault("orchestration.timeouts.generation", "90s")
	v.SetDefault("orchestration.timeouts.selection", "90s")
	v.SetDefault("orchestration.timeouts.subject", "45s")
	v.SetDefault("orchestration.timeouts.format", "90s")
	v.SetDefault("orchestration.timeouts.policy", "10s")
	v.SetDefault("orchestration.timeouts.send", "30s")
	v.SetDefault("orchestration.timeouts.run", "10m")

	v.SetDefault("webhook.async", true)
	v.SetDefault("webhook.dedupe_ttl", "24h")
	v.SetDefault("webhook.max_body_bytes", 20<<20)
	v.SetDefault("webhook.enqueue_timeout", "10s")
	v.SetDefault("webhook.sync_timeout", "5m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "outreach")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "outreach")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)

	v.SetDefault("policy.mode", "off")
	v.SetDefault("policy.path", "")
	v.SetDefault("policy.fail_closed", false)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "outreach")

	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "outreach-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
}

// legacyEnv keeps the variable names operators already export working.
var legacyEnv = map[string]string{
	"delivery.sendgrid_api_key": "SENDGRID_API_KEY",
	"delivery.sender":           "SENDGRID_VERIFIED_SENDER",
	"llm.anthropic_api_key":     "ANTHROPIC_API_KEY",
	"llm.service_url":           "LLM_SERVICE_URL",
	"temporal.host_port":        "TEMPORAL_HOST",
	"auth.jwt_secret":           "JWT_SECRET",
}

// Load reads path (optional) and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the parts of the config every run depends on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Personas(); err != nil {
		errs = append(errs, fmt.Errorf("campaign.personas: %w", err))
	}
	if c.Delivery.Sender != "" {
		if _, err := netmail.ParseAddress(c.Delivery.Sender); err != nil {
			errs = append(errs, fmt.Errorf("delivery.sender: %w", err))
		}
	}
	if c.Delivery.Recipient != "" {
		if _, err := netmail.ParseAddress(c.Delivery.Recipient); err != nil {
			errs = append(errs, fmt.Errorf("delivery.recipient: %w", err))
		}
	}
	switch c.Delivery.Transport {
	case "sendgrid", "log":
	default:
		errs = append(errs, fmt.Errorf("delivery.transport: unknown transport %q", c.Delivery.Transport))
	}
	if _, err := policy.ParseMode(string(c.Policy.Mode)); err != nil {
		errs = append(errs, fmt.Errorf("policy.mode: %w", err))
	}
	if err := c.LLM.Pricing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("llm.pricing: %w", err))
	}
	if c.Orchestration.GenerationRetries < 0 || c.Orchestration.SelectionRetries < 0 {
		errs = append(errs, errors.New("orchestration: retries cannot be negative"))
	}
	t := c.Orchestration.Timeouts
	for name, d := range map[string]time.Duration{
		"generation": t.Generation, "selection": t.Selection, "subject": t.Subject,
		"format": t.Format, "policy": t.Policy, "send": t.Send, "run": t.Run,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("orchestration.timeouts.%s must be positive", name))
		}
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth is enabled"))
	}
	return errors.Join(errs...)
}

// Personas resolves the configured persona set in dispatch order.
func (c *Config) Personas() ([]personas.Persona, error) {
	return personas.Resolve(c.Campaign.CompanyContext, c.Campaign.DefaultModel, c.Campaign.Personas)
}

// ModelFor returns the agent model, falling back to the campaign default.
func (c *Config) ModelFor(a AgentConfig) string {
	if a.Model != "" {
		return a.Model
	}
	return c.Campaign.DefaultModel
}

// PostgresDSN renders the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	p := c.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

const redactedValue = "********"

// Redacted renders the config as YAML with credentials masked.
func (c *Config) Redacted() ([]byte, error) {
	cp := *c
	for _, s := range []*string{
		&cp.LLM.AnthropicAPIKey, &cp.Delivery.SendGridAPIKey, &cp.Redis.Password,
		&cp.Postgres.Password, &cp.Auth.JWTSecret,
	} {
		if *s != "" {
			*s = redactedValue
		}
	}
	return yaml.Marshal(&cp)
}
