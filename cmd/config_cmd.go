package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabmirror/fabmirror/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and validate the fabmirror configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Fabric:\n")
		fmt.Printf("    Base URL:       %s\n", cfg.Fabric.BaseURL)
		fmt.Printf("    Tenant ID:      %s\n", cfg.Fabric.TenantID)
		fmt.Printf("    Client ID:      %s\n", cfg.Fabric.ClientID)
		fmt.Printf("    Token:          %s\n", maskSecret(cfg.Fabric.Token))
		fmt.Printf("    Timeout:        %ds\n", cfg.Fabric.TimeoutSeconds)
		fmt.Printf("    Retries:        %d\n", cfg.Fabric.Retries)
		fmt.Println()
		fmt.Printf("  Catalog:\n")
		fmt.Printf("    Backend:        %s\n", cfg.Catalog.Backend)
		fmt.Printf("    DSN:            %s\n", maskSecret(cfg.Catalog.DSN))
		if cfg.Catalog.Backend == "mongodb" {
			fmt.Printf("    Database:       %s\n", cfg.Catalog.Database)
		}
		fmt.Println()
		fmt.Printf("  SQL:\n")
		fmt.Printf("    Timeout:        %ds\n", cfg.SQL.TimeoutSeconds)
		fmt.Printf("    Trust cert:     %v\n", cfg.SQL.TrustServerCert)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		var errors []string
		if cfg.Fabric.Token == "" {
			errors = append(errors, "fabric.token is required")
		}
		if cfg.Catalog.DSN == "" {
			errors = append(errors, "catalog.dsn is required")
		}
		if cfg.Catalog.Backend != "postgres" && cfg.Catalog.Backend != "mongodb" {
			errors = append(errors, "catalog.backend must be postgres or mongodb")
		}
		if cfg.Catalog.Backend == "mongodb" && cfg.Catalog.Database == "" {
			errors = append(errors, "catalog.database is required for the mongodb backend")
		}

		if len(errors) > 0 {
			fmt.Println("Config has problems:")
			for _, e := range errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("%d validation error(s)", len(errors))
		}

		fmt.Println("Config is valid.")
		return nil
	},
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
