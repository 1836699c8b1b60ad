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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-recoverykit/pkg/kitstore"
	"github.com/jeremyhahn/go-recoverykit/pkg/metrics"
	"github.com/jeremyhahn/go-recoverykit/pkg/recovery"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

var (
	recoverKitName   string
	recoverAnswers   []string
	recoverSecretOut string
)

// recoverCmd attempts secret recovery from submitted answers
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover a secret from a stored kit",
	Long: `Recover a secret by answering a kit's questions.

Answers are given as question=alternative index pairs, using the
indices shown by the inspect command:

  recoverykit recover --name personal \
      --answer 0=1 --answer 2=0 --answer 5=2

A rejected attempt reports no detail about which answers were wrong.
Each memory-hard derivation takes deliberate time and memory; this is
the cost an attacker pays per guess.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().StringVarP(&recoverKitName, "name", "n", "default",
		"kit name")
	recoverCmd.Flags().StringArrayVarP(&recoverAnswers, "answer", "a", nil,
		"answer as questionIndex=alternativeIndex (repeatable)")
	recoverCmd.Flags().StringVar(&recoverSecretOut, "secret-out", "",
		"write the recovered secret to this file instead of stdout")
	_ = recoverCmd.MarkFlagRequired("answer")
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	start := time.Now()

	backend, err := cfg.CreateBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	v, catalog, err := kitstore.Load(backend, kitKey(recoverKitName))
	if err != nil {
		return err
	}

	adapter, err := cfg.CreateKDF()
	if err != nil {
		return err
	}
	engine, err := recovery.NewEngine(v, catalog, recovery.Config{
		KDF:             adapter,
		Logger:          cfg.Logger(),
		MemoryBudgetKiB: cfg.MemoryBudgetKiB,
	})
	if err != nil {
		return err
	}

	for _, raw := range recoverAnswers {
		qi, ai, err := parseAnswer(raw)
		if err != nil {
			return err
		}
		if qi >= len(v.Questions()) {
			return fmt.Errorf("no question at index %d", qi)
		}
		q := v.Questions()[qi]
		if ai >= len(q.Alternatives) {
			return fmt.Errorf("question %d has no alternative %d", qi, ai)
		}
		if err := engine.Submit(vault.Submission{
			QuestionID:    q.ID,
			AlternativeID: q.Alternatives[ai].ID,
		}); err != nil {
			return err
		}
	}

	secret, err := engine.Recover(cmd.Context())
	metrics.RecordOperation(metrics.OpRecover, statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer zeroize.Bytes(secret)

	if recoverSecretOut != "" {
		if err := os.WriteFile(recoverSecretOut, secret, 0600); err != nil {
			return fmt.Errorf("failed to write secret: %w", err)
		}
		return nil
	}
	_, err = os.Stdout.Write(append(secret, '\n'))
	return err
}

// parseAnswer parses "questionIndex=alternativeIndex".
func parseAnswer(raw string) (int, int, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid answer %q, want questionIndex=alternativeIndex", raw)
	}
	qi, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || qi < 0 {
		return 0, 0, fmt.Errorf("invalid question index in %q", raw)
	}
	ai, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || ai < 0 {
		return 0, 0, fmt.Errorf("invalid alternative index in %q", raw)
	}
	return qi, ai, nil
}

func statusOf(err error) string {
	if err != nil {
		return metrics.StatusError
	}
	return metrics.StatusSuccess
}
