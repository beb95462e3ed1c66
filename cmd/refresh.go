package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabmirror/fabmirror/internal/lock"
)

var (
	refreshSchema string
	refreshTable  string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [workspace [database]]",
	Short: "Re-crawl the remote catalog into the local store",
	Long: `With no arguments, performs a full catalog refresh: every workspace is
re-crawled, probed, and its SQL endpoints re-resolved. With a workspace
(name or id), refreshes that workspace's items and endpoints. With a
workspace and database, rescans that database's live schema tree; add
--schema or --schema/--table to narrow the rescan.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		if len(args) == 0 {
			if err := lock.Acquire(""); err != nil {
				return err
			}
			defer lock.Release("")

			fmt.Println("Refreshing full catalog...")
			if err := app.syncer.RefreshCatalog(ctx); err != nil {
				return fmt.Errorf("refreshing catalog: %w", err)
			}
			st, err := app.store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Done. %d workspaces, %d items, %d SQL endpoints.\n",
				st.Workspaces, st.Items, st.Endpoints)
			return nil
		}

		ws, err := app.resolver.ResolveWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		if ws == nil {
			return fmt.Errorf("no workspace matches %q", args[0])
		}

		if len(args) == 1 {
			fmt.Printf("Refreshing workspace %s (%s)...\n", ws.Name, ws.ID)
			if err := app.syncer.RefreshWorkspace(ctx, ws.ID); err != nil {
				return fmt.Errorf("refreshing workspace: %w", err)
			}
			fmt.Println("Done.")
			return nil
		}

		db, err := app.resolver.ResolveDatabase(ctx, ws.ID, args[1])
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("no database matches %q in workspace %s", args[1], ws.Name)
		}

		switch {
		case refreshTable != "":
			if refreshSchema == "" {
				return fmt.Errorf("--table requires --schema")
			}
			fmt.Printf("Refreshing columns of %s.%s in %s...\n", refreshSchema, refreshTable, db.DatabaseName)
			err = app.syncer.RefreshColumns(ctx, ws.ID, db.DatabaseID, refreshSchema, refreshTable)
		case refreshSchema != "":
			fmt.Printf("Refreshing tables of schema %s in %s...\n", refreshSchema, db.DatabaseName)
			err = app.syncer.RefreshTables(ctx, ws.ID, db.DatabaseID, refreshSchema)
		default:
			fmt.Printf("Refreshing full schema tree of %s...\n", db.DatabaseName)
			err = app.syncer.RefreshDatabase(ctx, ws.ID, db.DatabaseID)
		}
		if err != nil {
			return fmt.Errorf("refreshing: %w", err)
		}
		fmt.Println("Done.")
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSchema, "schema", "", "limit the rescan to one schema")
	refreshCmd.Flags().StringVar(&refreshTable, "table", "", "limit the rescan to one table (requires --schema)")
	rootCmd.AddCommand(refreshCmd)
}
