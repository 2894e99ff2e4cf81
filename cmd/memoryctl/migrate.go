package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd re-opens the database, which applies any pending migrations and is a no-op
// otherwise (RunMigrations tracks applied versions in schema_versions).
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply any pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
		defer store.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
