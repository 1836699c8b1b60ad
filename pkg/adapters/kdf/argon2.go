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
	"golang.org/x/crypto/argon2"
)

const (
	// MinArgon2SaltLength is the minimum salt length in bytes
	MinArgon2SaltLength = 16

	// AbsoluteMinMemory is the lowest memory floor this package accepts,
	// in KiB. Only tests and calibration probes run this low.
	AbsoluteMinMemory = 8 * 1024 // 8 MiB

	// DefaultMemoryFloor is the production memory floor in KiB. Answer keys
	// must cost at least this much to brute-force one guess.
	DefaultMemoryFloor = 1024 * 1024 // 1 GiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1
)

// Argon2Adapter implements the KDFAdapter interface using Argon2id.
//
// Unlike a general-purpose KDF wrapper, this adapter carries a memory floor:
// derivations below the floor fail with ErrParamOutOfBounds rather than
// silently running cheap. Lane count is pinned to 1 so attackers cannot be
// granted a parallelism discount the legitimate user never gets.
type Argon2Adapter struct {
	memoryFloor uint32
}

// NewArgon2idAdapter creates an Argon2id adapter with the production memory
// floor of 1 GiB.
func NewArgon2idAdapter() *Argon2Adapter {
	return &Argon2Adapter{memoryFloor: DefaultMemoryFloor}
}

// NewArgon2idAdapterWithFloor creates an Argon2id adapter with a custom
// memory floor in KiB. Floors below AbsoluteMinMemory are rejected.
func NewArgon2idAdapterWithFloor(floorKiB uint32) (*Argon2Adapter, error) {
	if floorKiB < AbsoluteMinMemory {
		return nil, ErrInvalidFloor
	}
	return &Argon2Adapter{memoryFloor: floorKiB}, nil
}

// MemoryFloor returns the configured memory floor in KiB.
func (a *Argon2Adapter) MemoryFloor() uint32 {
	return a.memoryFloor
}

// DeriveKey derives a key using Argon2id
func (a *Argon2Adapter) DeriveKey(ikm []byte, params *KDFParams) ([]byte, error) {
	if err := a.ValidateParams(params); err != nil {
		return nil, err
	}

	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	key := argon2.IDKey(
		ikm,
		params.Salt,
		params.Time,
		params.Memory,
		params.Threads,
		uint32(params.KeyLength),
	)

	return key, nil
}

// Algorithm returns the KDF algorithm
func (a *Argon2Adapter) Algorithm() KDFAlgorithm {
	return AlgorithmArgon2id
}

// ValidateParams validates Argon2id parameters against the configured floor
func (a *Argon2Adapter) ValidateParams(params *KDFParams) error {
	if params == nil {
		return ErrInvalidKeyLength
	}

	if params.Algorithm != AlgorithmArgon2id {
		return ErrUnsupportedAlgorithm
	}

	if params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}

	if len(params.Salt) < MinArgon2SaltLength {
		return ErrInvalidSalt
	}

	if params.Memory < a.memoryFloor {
		return ErrParamOutOfBounds
	}

	if params.Time < MinArgon2Time {
		return ErrInvalidTime
	}

	if params.Threads != 1 {
		return ErrInvalidThreads
	}

	return nil
}
