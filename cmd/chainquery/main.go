/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command chainquery reads decorated chain storage from a node or a
// DynamoDB snapshot mirror.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose  bool
	envFile  string
	cfgFlags config
	timeout  time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chainquery",
	Short: "Query chain storage by module and entry name",
	Long: `chainquery decorates the storage entries listed in a metadata document
and reads them from a node (over WebSocket) or from a DynamoDB snapshot table.

Calls are written as module.entry with optional key arguments:

  chainquery once system.number balances.totalIssuance
  chainquery once system.account:0xd43593c7...
  chainquery watch system.number
  chainquery keys staking.bonded

Settings are read from the environment (and a .env file) and can be
overridden by flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file to load before reading settings")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for one-shot reads")
	flags.StringVar(&cfgFlags.Backend, "backend", "", "Storage backend: ws or ddb (default ws)")
	flags.StringVar(&cfgFlags.Endpoint, "endpoint", "", "Node WebSocket endpoint (CHAINQUERY_ENDPOINT)")
	flags.StringVar(&cfgFlags.Metadata, "metadata", "", "Metadata YAML document (CHAINQUERY_METADATA)")
	flags.StringVar(&cfgFlags.Table, "table", "", "DynamoDB snapshot table (AWS_DDB_TABLE)")
	flags.StringVar(&cfgFlags.Region, "region", "", "AWS region (AWS_REGION)")
	flags.StringVar(&cfgFlags.At, "at", "", "Block hash to read at instead of the current block")
	flags.UintVar(&cfgFlags.PageSize, "page-size", 0, "Keys per page when iterating (default 1000)")

	rootCmd.AddCommand(onceCmd, watchCmd, keysCmd, entriesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
