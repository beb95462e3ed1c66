package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fabmirror/fabmirror/internal/browse"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the mirrored catalog interactively",
	Long:  `Opens a terminal browser over the local catalog: workspaces, SQL endpoints, schemas, tables, and columns. Reads only from the cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		p := tea.NewProgram(browse.New(app.store), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running browser: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
