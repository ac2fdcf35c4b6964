package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcjurado/outreach/internal/auth"
	"github.com/jcjurado/outreach/internal/service"
)

var (
	tokenSubject string
	tokenScopes  []string
	tokenTTL     time.Duration
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or invoke the generation agents as tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured generation agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := localService()
		if err != nil {
			return err
		}
		tb, err := svc.Toolbox()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tb.Descriptors())
	},
}

var toolsInvokeCmd = &cobra.Command{
	Use:   "invoke NAME INPUT",
	Short: "Run one generation agent on an input, outside any run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localService()
		if err != nil {
			return err
		}
		tb, err := svc.Toolbox()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()
		out, err := tb.Invoke(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := cfg.Redacted()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage operator API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign an operator API token with the configured secret",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		jwtm, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenTTL)
		if err != nil {
			return err
		}
		token, err := jwtm.GenerateToken(tokenSubject, tokenScopes...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsInvokeCmd)
	configCmd.AddCommand(configShowCmd)

	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	tokenIssueCmd.Flags().StringSliceVar(&tokenScopes, "scope", auth.DefaultScopes, "Granted scope (repeatable)")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
}

// localService builds a Service without a Temporal client, for commands
// that only touch configuration and the model provider.
func localService() (*service.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	return service.New(nil, staticConfig{cfg: cfg}, service.NewProvider(cfg, logger), logger), nil
}
