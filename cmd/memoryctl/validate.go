package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/semanticmemory/internal/validate"
)

var validateKind string

// validateCmd reads one JSON document from stdin, runs it through internal/validate,
// writes the {allow, code, reason, details} envelope to stdout, and exits 0 iff
// allow=true.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run a hook payload on stdin through the validator protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := validate.Run(validate.Kind(validateKind), cmd.InOrStdin())
		if err != nil {
			return err
		}
		if err := validate.Write(cmd.OutOrStdout(), res); err != nil {
			return fmt.Errorf("failed to write validator result: %w", err)
		}
		if code := res.ExitCode(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateKind, "kind", "", "pre_dispatch, pre_complete, post_execution, on_lock_update, or watchdog_timeout")
	_ = validateCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(validateCmd)
}
