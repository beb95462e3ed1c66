package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabmirror/fabmirror/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file interactively",
	Long:  `Walk through prompts to create a fabmirror configuration file at ~/.fabmirror/fabmirror.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("fabmirror Configuration Setup")
		fmt.Println("=============================")
		fmt.Println()

		fmt.Println("Fabric API")
		fmt.Println("----------")
		baseURL := prompt(reader, "Base URL", "https://api.fabric.microsoft.com/v1/")
		tenantID := prompt(reader, "Tenant ID (optional)", "")
		clientID := prompt(reader, "Client ID (optional)", "")
		token := prompt(reader, "API token (or ${ENV:VAR}/${VAULT:path#key}/${AWS_SM:name} reference)", "${ENV:FABRIC_TOKEN}")
		fmt.Println()

		fmt.Println("Catalog Store")
		fmt.Println("-------------")
		backend := prompt(reader, "Backend (postgres/mongodb)", "postgres")
		defaultDSN := "postgres://localhost:5432/fabmirror"
		if backend == "mongodb" {
			defaultDSN = "mongodb://localhost:27017"
		}
		dsn := prompt(reader, "Connection string", defaultDSN)
		database := ""
		if backend == "mongodb" {
			database = prompt(reader, "Database name", "fabmirror")
		}

		cfg := &config.Config{
			Version: config.CurrentVersion,
			Fabric: config.FabricConfig{
				BaseURL:  baseURL,
				TenantID: tenantID,
				ClientID: clientID,
				Token:    token,
			},
			Catalog: config.CatalogConfig{
				Backend:  backend,
				DSN:      dsn,
				Database: database,
			},
		}

		cfgPath := config.ExpandHome(config.DefaultPath)
		if cfgFile != "" {
			cfgPath = cfgFile
		}

		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  fabmirror refresh    - Crawl the remote catalog into the local store")
		fmt.Println("  fabmirror browse     - Browse the mirrored catalog")
		fmt.Println("  fabmirror serve      - Start the HTTP API")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal
	}
	return line
}
