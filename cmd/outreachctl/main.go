// Package main provides outreachctl, the operator CLI for the outreach
// orchestrator: it starts campaigns and replies, inspects runs, and issues
// API tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/temporal"
)

// Global flags
var (
	configPath  string
	verbose     bool
	dialTimeout time.Duration
	runTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "outreachctl",
	Short: "Operate the outreach orchestrator",
	Long: `outreachctl talks to the same Temporal namespace and task queue as the
orchestrator and reads the same configuration file.

Examples:
  outreachctl campaign run --brief "Analytics suite for retail"
  outreachctl reply send --from jane@prospect.test --subject Pricing --text "How much?"
  outreachctl runs get campaign-6f1c...
  outreachctl tools list
  outreachctl token issue --subject ops --scope campaigns:write`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("OUTREACH_CONFIG"), "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "How long to retry connecting to Temporal")
	rootCmd.PersistentFlags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "How long to wait for a run")

	rootCmd.AddCommand(campaignCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Current() *config.Config { return s.cfg }

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// connect builds a Service backed by a live Temporal client. The returned
// func closes the client.
func connect(ctx context.Context) (*service.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger()
	tcfg := cfg.Temporal
	tcfg.DialTimeout = dialTimeout
	tc, err := temporal.Dial(ctx, tcfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := service.New(tc, staticConfig{cfg: cfg}, service.NewProvider(cfg, logger), logger)
	return svc, tc.Close, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
