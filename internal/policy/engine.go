package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Input is what a delivery policy sees.
type Input struct {
	Sender    string
	Recipient string
	Domain    string
	Mode      string
}

// Decision is the outcome after the engine mode has been applied.
type Decision struct {
	Allow bool `json:"allow"`
	// WouldAllow is the raw policy answer, which differs from Allow in dry-run.
	WouldAllow bool   `json:"would_allow"`
	Reason     string `json:"reason"`
	Mode       Mode   `json:"mode"`
}

// Engine evaluates delivery policies.
type Engine interface {
	Evaluate(ctx context.Context, in Input) (Decision, error)
}

// OPAEngine is the OPA-backed Engine. Reload swaps configuration and
// recompiles under a lock, so it is safe to call from config watchers.
type OPAEngine struct {
	logger *zap.Logger

	mu       sync.RWMutex
	config   Config
	compiled *rego.PreparedEvalQuery
}

// NewOPAEngine creates and compiles an engine.
func NewOPAEngine(cfg Config, logger *zap.Logger) (*OPAEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &OPAEngine{logger: logger}
	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload applies new configuration. On compile failure the previous policy
// stays active.
func (e *OPAEngine) Reload(cfg Config) error {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOff
	}

	var compiled *rego.PreparedEvalQuery
	if cfg.Mode != ModeOff {
		modules, err := loadModules(cfg.Path)
		if err != nil {
			return err
		}
		opts := []func(*rego.Rego){rego.Query(decisionQuery)}
		for name, content := range modules {
			opts = append(opts, rego.Module(name, content))
		}
		pq, err := rego.New(opts...).PrepareForEval(context.Background())
		if err != nil {
			return fmt.Errorf("failed to compile policies: %w", err)
		}
		compiled = &pq
		e.logger.Info("Delivery policies compiled",
			zap.Int("policy_count", len(modules)),
			zap.String("mode", string(cfg.Mode)),
		)
	}

	e.mu.Lock()
	e.config = cfg
	e.compiled = compiled
	e.mu.Unlock()
	return nil
}

func loadModules(dir string) (map[string]string, error) {
	if dir == "" {
		return map[string]string{"outreach/delivery.rego": defaultPolicy}, nil
	}
	modules := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		modules[rel] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk policy directory: %w", err)
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("no .rego files in %s", dir)
	}
	return modules, nil
}

// Mode returns the active mode.
func (e *OPAEngine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.Mode
}

// Evaluate implements Engine.
func (e *OPAEngine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	start := time.Now()
	e.mu.RLock()
	cfg := e.config
	compiled := e.compiled
	e.mu.RUnlock()

	if cfg.Mode == ModeOff || compiled == nil {
		return Decision{Allow: true, WouldAllow: true, Reason: "policy engine disabled", Mode: ModeOff}, nil
	}

	input := map[string]interface{}{
		"sender":           in.Sender,
		"recipient":        in.Recipient,
		"recipient_domain": strings.ToLower(in.Domain),
		"mode":             in.Mode,
		"allowed_domains":  toInterfaces(cfg.AllowedDomains),
		"blocked_domains":  toInterfaces(cfg.BlockedDomains),
	}

	results, err := compiled.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		recordError(cfg.Mode)
		e.logger.Error("Policy evaluation failed", zap.Error(err))
		if cfg.FailClosed {
			return Decision{Allow: false, Reason: "policy evaluation error", Mode: cfg.Mode}, err
		}
		return Decision{Allow: true, WouldAllow: true, Reason: "policy evaluation error, failing open", Mode: cfg.Mode}, nil
	}

	d := parseResults(results)
	d.Mode = cfg.Mode
	d.Allow = d.WouldAllow
	if cfg.Mode == ModeDryRun && !d.WouldAllow {
		d.Allow = true
		d.Reason = "DRY-RUN: would have been denied - " + d.Reason
		e.logger.Info("Dry-run delivery policy denial",
			zap.String("recipient", in.Recipient),
			zap.String("reason", d.Reason),
		)
	}

	recordEvaluation(d, time.Since(start))
	return d, nil
}

func parseResults(results rego.ResultSet) Decision {
	d := Decision{Reason: "no matching policy rules"}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return d
	}
	switch v := results[0].Expressions[0].Value.(type) {
	case map[string]interface{}:
		if allow, ok := v["allow"].(bool); ok {
			d.WouldAllow = allow
		}
		if reason, ok := v["reason"].(string); ok {
			d.Reason = reason
		}
	case bool:
		d.WouldAllow = v
		d.Reason = "denied by policy"
		if v {
			d.Reason = "allowed by policy"
		}
	}
	return d
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, 0, len(ss))
	for _, s := range ss {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
