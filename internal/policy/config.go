package policy

import "fmt"

// Mode defines the policy engine operating mode
type Mode string

const (
	// ModeOff disables policy evaluation entirely
	ModeOff Mode = "off"
	// ModeDryRun evaluates policies but only logs denials
	ModeDryRun Mode = "dry-run"
	// ModeEnforce evaluates and enforces policies
	ModeEnforce Mode = "enforce"
)

// ParseMode validates a configured mode; empty means off.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeOff:
		return ModeOff, nil
	case ModeDryRun, ModeEnforce:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown policy mode %q", s)
}

// Config holds delivery policy configuration
type Config struct {
	Mode Mode `mapstructure:"mode" yaml:"mode"`
	// Path is a directory of .rego files; empty uses the built-in policy.
	Path           string   `mapstructure:"path" yaml:"path"`
	FailClosed     bool     `mapstructure:"fail_closed" yaml:"fail_closed"`
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	BlockedDomains []string `mapstructure:"blocked_domains" yaml:"blocked_domains"`
}
