// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recoverykit.
//
// go-recoverykit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-recoverykit/pkg/metrics"
)

// resourceCollectInterval paces the resource gauge updates that run
// for the lifetime of a command.
const resourceCollectInterval = time.Second

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "recoverykit",
	Short: "recoverykit CLI - Offline passwordless secret recovery",
	Long: `recoverykit protects a secret behind self-authored knowledge
questions, entirely offline. Setup splits the secret into Shamir
shares, seals one share per correct answer under a memory-hard
per-answer key, and pads every other alternative with
indistinguishable dummy shares. Recovery reverses the pipeline:
answers are submitted, payloads unsealed, and the secret is
reconstructed only when the threshold policy and the final
authentication gate are both satisfied.

Kits are plain files. No server, no password, no network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize global config
	globalConfig = NewConfig()

	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle (Load references rootCmd's flags).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.Load(); err != nil {
			return err
		}
		// Memory-hard derivations dominate setup and recover; the
		// resource gauges track them while the command runs.
		metrics.CollectOnce()
		metrics.StartResourceCollector(cmd.Context(), resourceCollectInterval)
		return nil
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default is $HOME/.recoverykit.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.KitDir, "kit-dir", defaultKitDir(),
		"directory for kit storage")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(calibrateCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}
