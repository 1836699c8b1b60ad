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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-recoverykit/pkg/kitstore"
	"github.com/jeremyhahn/go-recoverykit/pkg/metrics"
	"github.com/jeremyhahn/go-recoverykit/pkg/setup"
	"github.com/jeremyhahn/go-recoverykit/pkg/storage"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

// kitDefinition is the JSON document the setup command consumes.
// Answers appear only in this file; users should destroy it after
// setup.
type kitDefinition struct {
	Threshold int `json:"threshold"`
	Questions []struct {
		Text         string   `json:"text"`
		Tier         string   `json:"tier"`
		Alternatives []string `json:"alternatives"`
		Answer       int      `json:"answer"`
	} `json:"questions"`
	Decoys []struct {
		SecretFile string `json:"secret_file"`
		Threshold  int    `json:"threshold"`
		Critical   []int  `json:"critical,omitempty"`
	} `json:"decoys,omitempty"`
}

var (
	setupDefinitionFile string
	setupSecretFile     string
	setupKitName        string
)

// setupCmd builds and stores a recovery kit
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Build a recovery kit from a kit definition",
	Long: `Build a recovery kit from a JSON kit definition and store it
under the kit directory.

The secret is read from --secret-file, or from stdin when the flag is
omitted. The definition file contains the correct answers; shred it
once the kit is built.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVarP(&setupDefinitionFile, "definition", "d", "",
		"kit definition JSON file (required)")
	setupCmd.Flags().StringVarP(&setupSecretFile, "secret-file", "s", "",
		"file holding the secret to protect (default: read stdin)")
	setupCmd.Flags().StringVarP(&setupKitName, "name", "n", "default",
		"kit name")
	_ = setupCmd.MarkFlagRequired("definition")
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	printer := NewPrinter(cfg.OutputFormat, os.Stdout)
	start := time.Now()

	defData, err := os.ReadFile(setupDefinitionFile)
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}
	var def kitDefinition
	if err := json.Unmarshal(defData, &def); err != nil {
		return fmt.Errorf("failed to parse definition: %w", err)
	}

	secret, err := readSecret(setupSecretFile)
	if err != nil {
		return err
	}
	defer zeroize.Bytes(secret)

	specs := make([]setup.QuestionSpec, len(def.Questions))
	for i, q := range def.Questions {
		tier := vault.TierStandard
		if q.Tier == "critical" {
			tier = vault.TierCritical
		}
		specs[i] = setup.QuestionSpec{
			Text:         q.Text,
			Tier:         tier,
			Alternatives: q.Alternatives,
			Answer:       q.Answer,
		}
	}

	decoys := make([]setup.DecoySpec, len(def.Decoys))
	for i, d := range def.Decoys {
		decoySecret, err := readSecret(d.SecretFile)
		if err != nil {
			return fmt.Errorf("decoy %d: %w", i, err)
		}
		defer zeroize.Bytes(decoySecret)
		decoys[i] = setup.DecoySpec{
			Secret:    decoySecret,
			Threshold: d.Threshold,
			Critical:  d.Critical,
		}
	}

	adapter, err := cfg.CreateKDF()
	if err != nil {
		return err
	}
	metrics.SetDerivationMemory(float64(cfg.KDFMemoryKiB))

	builder := setup.NewBuilder(adapter, rand.NewSource(), setup.Params{
		Cost:    vault.KDFCost{Time: cfg.KDFTime, Memory: cfg.KDFMemoryKiB},
		MinBits: cfg.MinHardnessBits,
	})
	kit, err := builder.Build(secret, specs, def.Threshold, decoys)
	if err != nil {
		metrics.RecordOperation(metrics.OpSetup, metrics.StatusError, time.Since(start).Seconds())
		return err
	}

	backend, err := cfg.CreateBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := kitstore.Save(backend, kitKey(setupKitName), kit); err != nil {
		metrics.RecordOperation(metrics.OpSetup, metrics.StatusError, time.Since(start).Seconds())
		return err
	}

	metrics.RecordOperation(metrics.OpSetup, metrics.StatusSuccess, time.Since(start).Seconds())
	return printer.PrintMessage(fmt.Sprintf("kit %q built with %d questions", setupKitName, len(specs)))
}

// readSecret reads the secret bytes from a file, or stdin when path is
// empty. A trailing newline from interactive entry is trimmed.
func readSecret(path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data, nil
}

func kitKey(name string) string {
	return storage.KitPath(name)
}
