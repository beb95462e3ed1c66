package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabmirror/fabmirror/internal/lock"
	"github.com/fabmirror/fabmirror/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog size and refresh history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		st, err := app.store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Println("Catalog:")
		fmt.Printf("  Workspaces:    %d\n", st.Workspaces)
		fmt.Printf("  Items:         %d\n", st.Items)
		fmt.Printf("  SQL endpoints: %d\n", st.Endpoints)
		fmt.Printf("  Schemas:       %d\n", st.Schemas)
		fmt.Printf("  Tables:        %d\n", st.Tables)
		fmt.Printf("  Columns:       %d\n", st.Columns)
		fmt.Println()

		ledger, err := state.Load("")
		if err != nil {
			return fmt.Errorf("loading refresh state: %w", err)
		}
		if len(ledger.Scopes) == 0 {
			fmt.Println("No refreshes recorded yet. Run: fabmirror refresh")
		} else {
			fmt.Println("Recent refreshes:")
			scopes := make([]string, 0, len(ledger.Scopes))
			for scope := range ledger.Scopes {
				scopes = append(scopes, scope)
			}
			sort.Slice(scopes, func(i, j int) bool {
				return ledger.Scopes[scopes[i]].RefreshedAt.After(ledger.Scopes[scopes[j]].RefreshedAt)
			})
			for _, scope := range scopes {
				ss := ledger.Scopes[scope]
				line := fmt.Sprintf("  [%s] %-40s %s", ss.Status, scope, ss.RefreshedAt.Format(time.RFC3339))
				if ss.Error != "" {
					line += "  (" + ss.Error + ")"
				}
				fmt.Println(line)
			}
		}

		if held, pid, _ := lock.IsHeld(""); held {
			fmt.Println()
			fmt.Printf("A full refresh is currently running (PID %d).\n", pid)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
