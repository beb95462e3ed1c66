package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <workspace>",
	Short: "Probe a workspace's availability and persist the new state",
	Long: `Runs the layered availability check against one workspace: list its
SQL-capable items, resolve a connection string, and execute a trial query.
The resulting state (active or inactive) is written back to the catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		ws, err := app.resolver.ResolveWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		if ws == nil {
			return fmt.Errorf("no workspace matches %q", args[0])
		}

		state, err := app.syncer.ProbeWorkspace(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("probing workspace: %w", err)
		}
		fmt.Printf("%s (%s): %s\n", ws.Name, ws.ID, state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
