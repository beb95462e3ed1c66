package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queryMaxRows int

var queryCmd = &cobra.Command{
	Use:   "query <workspace> <database> <sql>",
	Short: "Run a read-only query against a mirrored SQL endpoint",
	Long: `Resolves the workspace and database (names or ids), checks the statement
against the read-only blocklist, and executes it against the live endpoint.
Results are written as CSV to stdout.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		db, err := app.resolver.ResolveDatabase(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("no database matches %q in workspace %q", args[1], args[0])
		}

		cols, rows, err := app.syncer.Query(ctx, db.WorkspaceID, db.DatabaseID, args[2], queryMaxRows)
		if err != nil {
			return fmt.Errorf("running query: %w", err)
		}

		w := csv.NewWriter(os.Stdout)
		if err := w.Write(cols); err != nil {
			return err
		}
		for _, row := range rows {
			rec := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					rec[i] = ""
					continue
				}
				rec[i] = fmt.Sprint(v)
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryMaxRows, "max-rows", 10000, "cap on returned rows")
	rootCmd.AddCommand(queryCmd)
}
