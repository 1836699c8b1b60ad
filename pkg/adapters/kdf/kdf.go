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
	"crypto"
	"errors"
)

// KDFAlgorithm represents the key derivation function algorithm type
type KDFAlgorithm string

const (
	// AlgorithmArgon2id represents Argon2id, the memory-hard KDF used for
	// all per-answer key derivation
	AlgorithmArgon2id KDFAlgorithm = "Argon2id"

	// AlgorithmHKDF represents HMAC-based Extract-and-Expand Key Derivation
	// Function (RFC 5869), used for the cascade key schedule and the final
	// authentication gate
	AlgorithmHKDF KDFAlgorithm = "HKDF"
)

// String returns the string representation of the KDF algorithm
func (a KDFAlgorithm) String() string {
	return string(a)
}

// KDFParams contains parameters for key derivation
type KDFParams struct {
	// Algorithm specifies which KDF algorithm to use
	Algorithm KDFAlgorithm

	// Salt is the cryptographic salt (random and unique per derivation)
	Salt []byte

	// Info is additional domain-separation context (HKDF only)
	Info []byte

	// Memory is the memory cost in KiB (Argon2id only)
	Memory uint32

	// Time is the time cost/iterations (Argon2id only)
	Time uint32

	// Threads is the number of parallel lanes (Argon2id only).
	// The recovery engine always derives with a single lane; memory
	// hardness, not CPU parallelism, is the cost knob here.
	Threads uint8

	// KeyLength is the desired output key length in bytes
	KeyLength int

	// Hash is the hash function to use (HKDF only)
	Hash crypto.Hash
}

// KDFAdapter is the interface the engine derives keys through. The
// memory-hard primitive behind it is an external collaborator; this package
// only enforces the parameter contract.
type KDFAdapter interface {
	// DeriveKey derives a key from the input key material using the
	// specified parameters
	DeriveKey(ikm []byte, params *KDFParams) ([]byte, error)

	// Algorithm returns the KDF algorithm this adapter implements
	Algorithm() KDFAlgorithm

	// ValidateParams validates the KDF parameters for this algorithm
	ValidateParams(params *KDFParams) error
}

// Common errors
var (
	// ErrParamOutOfBounds indicates a cost parameter is below the configured
	// security floor. The floor is a hard requirement, not a default.
	ErrParamOutOfBounds = errors.New("kdf: cost parameter below security floor")

	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidTime indicates the time cost is invalid
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidThreads indicates the lane count is invalid
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidHash indicates the hash function is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported hash function")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported by
	// this adapter
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")

	// ErrInvalidFloor indicates a requested memory floor is below the
	// absolute package minimum
	ErrInvalidFloor = errors.New("kdf: memory floor below absolute minimum")
)
