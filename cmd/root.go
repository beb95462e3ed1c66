package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fabmirror",
	Short: "fabmirror - local mirror of a Fabric SQL catalog",
	Long: `fabmirror crawls the Microsoft Fabric REST API and keeps a durable local
catalog of workspaces, items, SQL endpoints, and their introspected
schemas, tables, and columns. Reads answer from the cache; explicit
refresh commands rescan the remote side.`,
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.fabmirror/fabmirror.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
