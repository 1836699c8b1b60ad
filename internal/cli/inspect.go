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
	"github.com/jeremyhahn/go-recoverykit/pkg/hardness"
	"github.com/jeremyhahn/go-recoverykit/pkg/kitstore"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

var inspectKitName string

// inspectCmd prints a kit's public metadata
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a kit's questions, policy and attack cost",
	Long: `Show a stored kit's questions, alternatives, recovery policy and
projected brute-force cost. The per-guess cost is measured on this
machine at the kit's stored Argon2id parameters, so the projection
reflects real derivation time.

Everything printed is public kit metadata; the output never indicates
which alternatives are correct.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		backend, err := cfg.CreateBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		v, _, err := kitstore.Load(backend, kitKey(inspectKitName))
		if err != nil {
			return err
		}

		printer := NewPrinter(cfg.OutputFormat, os.Stdout)
		if err := printer.PrintKitInfo(inspectKitName, v); err != nil {
			return err
		}

		est, perGuess, err := estimateAttack(v)
		if err != nil {
			return err
		}
		return printer.PrintAttackEstimate(est, perGuess)
	},
}

// estimateAttack projects the brute-force cost of exhausting the kit,
// using a derivation measured at the kit's own KDF parameters.
func estimateAttack(v *vault.Vault) (hardness.AttackEstimate, time.Duration, error) {
	var standardCounts, criticalCounts []int
	for _, q := range v.Questions() {
		if q.Tier == vault.TierCritical {
			criticalCounts = append(criticalCounts, len(q.Alternatives))
		} else {
			standardCounts = append(standardCounts, len(q.Alternatives))
		}
	}

	cost := v.Questions()[0].Alternatives[0].Cost
	perGuess := kdf.EstimatePerGuess(cost.Time, cost.Memory)

	est, err := hardness.EstimateTiered(standardCounts, criticalCounts, v.Policy().Threshold, perGuess)
	if err != nil {
		return hardness.AttackEstimate{}, 0, err
	}
	return est, perGuess, nil
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectKitName, "name", "n", "default",
		"kit name")
}
