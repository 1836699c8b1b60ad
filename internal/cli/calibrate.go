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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/metrics"
)

var (
	calibrateTarget    time.Duration
	calibrateMemoryKiB uint32
)

// calibrateCmd measures Argon2id cost parameters for this machine
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate Argon2id parameters for this machine",
	Long: `Measure Argon2id on this machine and recommend a time cost so one
derivation takes at least the target duration at the configured memory
cost. Memory is the security parameter and is never reduced to meet the
target; only the time cost scales.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		start := time.Now()

		memory := calibrateMemoryKiB
		if memory == 0 {
			memory = cfg.KDFMemoryKiB
		}

		result, err := kdf.Calibrate(calibrateTarget, memory)
		metrics.RecordOperation(metrics.OpCalibrate, statusOf(err), time.Since(start).Seconds())
		if err != nil {
			return err
		}

		printer := NewPrinter(cfg.OutputFormat, os.Stdout)
		return printer.PrintCalibration(result, memory)
	},
}

func init() {
	calibrateCmd.Flags().DurationVarP(&calibrateTarget, "target", "t", time.Second,
		"target duration for one derivation")
	calibrateCmd.Flags().Uint32Var(&calibrateMemoryKiB, "memory-kib", 0,
		"memory cost in KiB (default: configured setup memory)")
}
