package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/untoldecay/semanticmemory/internal/config"
)

// initCmd bootstraps the database file. The flock guard is distinct from the in-DB
// task_locks table (§4.10's "Supplemented features"): it exists only to keep two
// concurrent `memoryctl init` invocations from racing the schema-creation statements
// before either process has a connection open.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the database file and run pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.DBPath()
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		lock := flock.New(dbPath + ".bootstrap.lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire bootstrap lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another memoryctl init is already bootstrapping %s", dbPath)
		}
		defer func() { _ = lock.Unlock() }()

		store, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", dbPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
