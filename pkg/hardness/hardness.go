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

// Package hardness estimates the brute-force search space a recovery
// kit presents to an attacker who holds the kit file but knows none of
// the answers. The estimate drives a setup-time gate that refuses to
// produce kits that are too easy to grind through.
package hardness

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// DefaultMinBits is the minimum search space accepted at setup time.
// Roughly one million guesses, which at a one second per guess KDF
// cost is over a week of single-machine work.
const DefaultMinBits = 20.0

var ErrInsufficientHardness = errors.New("hardness: kit search space below configured minimum")

// Bits returns log2 of the number of distinct guesses needed to
// exhaust a kit: every way to pick threshold questions and one
// alternative for each. altCounts holds the alternative count per
// question. The count is the elementary symmetric polynomial
// e_threshold over altCounts, computed exactly.
func Bits(altCounts []int, threshold int) (float64, error) {
	n := len(altCounts)
	if threshold < 1 || threshold > n {
		return 0, fmt.Errorf("hardness: threshold %d out of range for %d questions", threshold, n)
	}
	for i, m := range altCounts {
		if m < 1 {
			return 0, fmt.Errorf("hardness: question %d has no alternatives", i)
		}
	}

	// e[k] accumulates the symmetric polynomial of degree k.
	e := make([]*big.Int, threshold+1)
	e[0] = big.NewInt(1)
	for k := 1; k <= threshold; k++ {
		e[k] = big.NewInt(0)
	}
	tmp := new(big.Int)
	for _, m := range altCounts {
		bm := big.NewInt(int64(m))
		for k := threshold; k >= 1; k-- {
			tmp.Mul(e[k-1], bm)
			e[k].Add(e[k], tmp)
		}
	}

	f, _ := new(big.Float).SetInt(e[threshold]).Float64()
	if math.IsInf(f, 0) {
		// Past float64 range the gate is trivially satisfied.
		return 4096, nil
	}
	return math.Log2(f), nil
}

// Gate rejects kits whose search space is below minBits. Pass
// DefaultMinBits unless the deployment has a specific policy.
func Gate(altCounts []int, threshold int, minBits float64) error {
	bits, err := Bits(altCounts, threshold)
	if err != nil {
		return err
	}
	if bits < minBits {
		return fmt.Errorf("%w: %.1f bits, need %.1f", ErrInsufficientHardness, bits, minBits)
	}
	return nil
}

// TieredBits extends Bits with critical-tier questions. Every critical
// question must be answered, so each one multiplies the standard
// search space by its alternative count.
func TieredBits(standardCounts, criticalCounts []int, threshold int) (float64, error) {
	bits, err := Bits(standardCounts, threshold)
	if err != nil {
		return 0, err
	}
	for i, m := range criticalCounts {
		if m < 1 {
			return 0, fmt.Errorf("hardness: critical question %d has no alternatives", i)
		}
		bits += math.Log2(float64(m))
	}
	return bits, nil
}

// AttackEstimate describes the expected cost of exhausting a kit.
type AttackEstimate struct {
	Bits      float64
	Guesses   float64
	WallClock time.Duration
}

// Estimate combines the search space with a measured per-guess KDF
// cost. WallClock saturates at the maximum duration rather than
// overflowing.
func Estimate(altCounts []int, threshold int, perGuess time.Duration) (AttackEstimate, error) {
	bits, err := Bits(altCounts, threshold)
	if err != nil {
		return AttackEstimate{}, err
	}
	return project(bits, perGuess), nil
}

// EstimateTiered is Estimate over the tiered search space of a kit
// with critical questions.
func EstimateTiered(standardCounts, criticalCounts []int, threshold int, perGuess time.Duration) (AttackEstimate, error) {
	bits, err := TieredBits(standardCounts, criticalCounts, threshold)
	if err != nil {
		return AttackEstimate{}, err
	}
	return project(bits, perGuess), nil
}

func project(bits float64, perGuess time.Duration) AttackEstimate {
	guesses := math.Exp2(bits)
	secs := guesses * perGuess.Seconds()
	wall := time.Duration(math.MaxInt64)
	if secs < math.MaxInt64/float64(time.Second) {
		wall = time.Duration(secs * float64(time.Second))
	}
	return AttackEstimate{Bits: bits, Guesses: guesses, WallClock: wall}
}
