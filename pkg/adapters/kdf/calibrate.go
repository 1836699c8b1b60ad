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

package kdf

import (
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
)

// CalibrationResult holds the recommended Argon2id cost parameters for a
// target per-derivation wall-clock time on the current machine.
type CalibrationResult struct {
	// Time is the recommended time cost
	Time uint32

	// Memory is the memory cost in KiB the calibration ran at
	Memory uint32

	// Measured is the wall-clock duration of one derivation at the
	// recommended parameters
	Measured time.Duration
}

// Calibrate measures Argon2id on this machine and recommends a time cost so
// that a single derivation at memoryKiB takes at least target. Memory stays
// fixed at the caller's floor; only the time cost scales, since memory is
// the security parameter and must not be traded away for latency.
func Calibrate(target time.Duration, memoryKiB uint32) (*CalibrationResult, error) {
	if target <= 0 {
		return nil, fmt.Errorf("kdf: invalid calibration target %v", target)
	}
	if memoryKiB < AbsoluteMinMemory {
		return nil, ErrInvalidFloor
	}

	salt := make([]byte, MinArgon2SaltLength)
	probe := []byte("calibration probe")

	base := measureArgon2id(probe, salt, 1, memoryKiB)
	if base <= 0 {
		base = time.Millisecond
	}

	// Time cost scales the runtime close to linearly.
	timeCost := uint32(1)
	for time.Duration(timeCost)*base < target && timeCost < 64 {
		timeCost++
	}

	measured := measureArgon2id(probe, salt, timeCost, memoryKiB)
	return &CalibrationResult{
		Time:     timeCost,
		Memory:   memoryKiB,
		Measured: measured,
	}, nil
}

// EstimatePerGuess returns the expected wall-clock cost of a single
// brute-force guess at the given parameters, measured on this machine.
func EstimatePerGuess(timeCost, memoryKiB uint32) time.Duration {
	salt := make([]byte, MinArgon2SaltLength)
	return measureArgon2id([]byte("estimate probe"), salt, timeCost, memoryKiB)
}

func measureArgon2id(ikm, salt []byte, timeCost, memoryKiB uint32) time.Duration {
	start := time.Now()
	argon2.IDKey(ikm, salt, timeCost, memoryKiB, 1, 32)
	return time.Since(start)
}
