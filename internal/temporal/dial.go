package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/config"
)

// Dial connects to the Temporal frontend, retrying with exponential backoff
// until cfg.DialTimeout elapses. A zero DialTimeout tries once.
func Dial(ctx context.Context, cfg config.TemporalConfig, logger *zap.Logger) (client.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewZapAdapter(logger),
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = cfg.DialTimeout

	var c client.Client
	attempt := 0
	op := func() error {
		attempt++
		var err error
		c, err = client.DialContext(ctx, opts)
		if err != nil {
			if cfg.DialTimeout <= 0 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Temporal not ready, retrying",
			zap.String("host", cfg.HostPort),
			zap.Int("attempt", attempt),
			zap.Duration("sleep", next),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	logger.Info("Connected to Temporal",
		zap.String("host", cfg.HostPort),
		zap.String("namespace", cfg.Namespace),
	)
	return c, nil
}
