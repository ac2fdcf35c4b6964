package circuitbreaker

import "time"

// Settings is the config-file shape of a breaker, one block per dependency.
type Settings struct {
	MaxRequests      uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold" yaml:"success_threshold"`
}

// ToConfig fills unset fields from DefaultConfig.
func (s Settings) ToConfig() Config {
	c := DefaultConfig()
	if s.MaxRequests > 0 {
		c.MaxRequests = s.MaxRequests
	}
	if s.Interval > 0 {
		c.Interval = s.Interval
	}
	if s.Timeout > 0 {
		c.Timeout = s.Timeout
	}
	if s.FailureThreshold > 0 {
		c.FailureThreshold = s.FailureThreshold
	}
	if s.SuccessThreshold > 0 {
		c.SuccessThreshold = s.SuccessThreshold
	}
	return c
}
