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
	"math"
	"time"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/hardness"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintKitInfo prints a kit's public metadata. Nothing printed here
// distinguishes correct alternatives from dummies.
func (p *Printer) PrintKitInfo(name string, v *vault.Vault) error {
	switch p.format {
	case OutputFormatJSON:
		questions := make([]map[string]interface{}, 0, len(v.Questions()))
		for _, q := range v.Questions() {
			alts := make([]map[string]interface{}, 0, len(q.Alternatives))
			for _, alt := range q.Alternatives {
				alts = append(alts, map[string]interface{}{
					"id":   alt.ID.String(),
					"text": alt.Text,
				})
			}
			questions = append(questions, map[string]interface{}{
				"id":           q.ID.String(),
				"text":         q.Text,
				"tier":         q.Tier.String(),
				"alternatives": alts,
			})
		}
		return p.printJSON(map[string]interface{}{
			"kit":       name,
			"questions": questions,
			"threshold": v.Policy().Threshold,
			"critical":  v.Policy().Critical,
			"bundles":   v.Bundles(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Kit: %s\n", name)
		fmt.Fprintf(p.writer, "Threshold: %d standard, %d critical\n",
			v.Policy().Threshold, len(v.Policy().Critical))
		fmt.Fprintf(p.writer, "Bundles: %d\n", v.Bundles())
		fmt.Fprintln(p.writer, "Questions:")
		for i, q := range v.Questions() {
			fmt.Fprintf(p.writer, "  [%d] (%s) %s\n", i, q.Tier, q.Text)
			for j, alt := range q.Alternatives {
				fmt.Fprintf(p.writer, "      %d) %s\n", j, alt.Text)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCalibration prints a KDF calibration result.
func (p *Printer) PrintCalibration(result *kdf.CalibrationResult, memoryKiB uint32) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"time_cost":  result.Time,
			"memory_kib": memoryKiB,
			"measured":   result.Measured.String(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Calibrated Argon2id parameters:\n")
		fmt.Fprintf(p.writer, "  Memory:    %d KiB\n", memoryKiB)
		fmt.Fprintf(p.writer, "  Time cost: %d\n", result.Time)
		fmt.Fprintf(p.writer, "  Measured:  %s per derivation\n", result.Measured)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintAttackEstimate prints the projected brute-force cost of a kit.
func (p *Printer) PrintAttackEstimate(est hardness.AttackEstimate, perGuess time.Duration) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"search_space_bits": est.Bits,
			"guesses":           est.Guesses,
			"per_guess":         perGuess.String(),
			"exhaustion":        attackClock(est.WallClock),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Attack cost:\n")
		fmt.Fprintf(p.writer, "  Search space: %.1f bits (%.3g guesses)\n", est.Bits, est.Guesses)
		fmt.Fprintf(p.writer, "  Per guess:    %s\n", perGuess)
		fmt.Fprintf(p.writer, "  Exhaustion:   %s\n", attackClock(est.WallClock))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// attackClock renders a projected exhaustion time. The estimate
// saturates at the maximum duration rather than overflowing.
func attackClock(d time.Duration) string {
	if d == time.Duration(math.MaxInt64) {
		return "more than 290 years"
	}
	if d >= 24*time.Hour {
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	}
	return d.String()
}

// PrintMessage prints a plain status message.
func (p *Printer) PrintMessage(msg string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"message": msg})
	case OutputFormatText:
		fmt.Fprintln(p.writer, msg)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON marshals and prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
