// Command memoryctl is the operator CLI over the semantic memory engine: database
// bootstrap, the task/lock state machine, and the §6 validator protocol, all built on
// the same C1-C7 packages the out-of-scope RPC server would use.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/semanticmemory/internal/config"
)

var (
	dbPathFlag     string
	logFileFlag    string
	configFileFlag string
	configFormat   string
	outputFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Operate the semantic memory engine's storage, ingestion and task core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if configFileFlag != "" {
			switch configFormat {
			case "", "toml":
				if err := config.LoadTOMLFile(configFileFlag); err != nil {
					return err
				}
			case "yaml":
				if err := config.LoadYAMLFile(configFileFlag); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported --config-format %q (want toml or yaml)", configFormat)
			}
		}
		if dbPathFlag != "" {
			config.Override("memory_db_path", dbPathFlag)
		}
		if logFileFlag != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   logFileFlag,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
		if outputFormat != "human" && outputFormat != "json" {
			return fmt.Errorf("--format must be \"human\" or \"json\", got %q", outputFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "override MEMORY_DB_PATH")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "rotate operational logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "load additional config from a file")
	rootCmd.PersistentFlags().StringVar(&configFormat, "config-format", "toml", "format of --config: toml or yaml")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "human", "output format: human or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
