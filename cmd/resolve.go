package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveWorkspaceFlag string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve names or ids to canonical catalog entities",
}

var resolveWorkspaceCmd = &cobra.Command{
	Use:   "workspace <text>",
	Short: "Resolve a workspace name, id, or database id to a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		ref, err := app.resolver.ResolveWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		if ref == nil {
			return fmt.Errorf("no workspace matches %q", args[0])
		}
		fmt.Printf("%s  %s\n", ref.ID, ref.Name)
		return nil
	},
}

var resolveDatabaseCmd = &cobra.Command{
	Use:   "database <text>",
	Short: "Resolve a database name or id, globally or within one workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		if resolveWorkspaceFlag != "" {
			db, err := app.resolver.ResolveDatabase(ctx, resolveWorkspaceFlag, args[0])
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("no database matches %q in workspace %q", args[0], resolveWorkspaceFlag)
			}
			fmt.Printf("%s  %s  (workspace %s, %s)\n", db.DatabaseID, db.DatabaseName, db.WorkspaceName, db.WorkspaceID)
			return nil
		}

		db, err := app.resolver.ResolveDatabaseGlobal(ctx, args[0])
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("no database matches %q", args[0])
		}
		fmt.Printf("%s  %s  (workspace %s, %s)\n", db.DatabaseID, db.DatabaseName, db.WorkspaceName, db.WorkspaceID)
		return nil
	},
}

func init() {
	resolveDatabaseCmd.Flags().StringVar(&resolveWorkspaceFlag, "workspace", "", "restrict resolution to one workspace (name or id)")
	resolveCmd.AddCommand(resolveWorkspaceCmd)
	resolveCmd.AddCommand(resolveDatabaseCmd)
	rootCmd.AddCommand(resolveCmd)
}
