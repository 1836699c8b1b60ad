// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recoverykit.

// Package shamir adapts Shamir's Secret Sharing for the recovery engine.
//
// The finite-field math is delegated entirely to the sssa-golang library;
// this package never implements field arithmetic. What it adds is the byte
// contract the rest of the engine relies on: secrets are framed to a fixed
// pad size before splitting, so every share of every secret in a kit has
// exactly the same byte length regardless of the underlying secret's length.
package shamir

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/SSSaaS/sssa-golang"
)

const (
	// frameHeaderSize is the 2-byte big-endian length prefix inside a
	// framed secret
	frameHeaderSize = 2

	// ChunkSize is the sssa-golang input chunk size in bytes. Pad sizes
	// must be a multiple of this so the library round-trips the frame
	// without internal padding.
	ChunkSize = 32

	// ShareCharsPerChunk is the sssa-golang share encoding width per chunk
	ShareCharsPerChunk = 88

	// DefaultPadSize is the default framed-secret size in bytes
	DefaultPadSize = 128

	// MaxSecretSize is the largest secret a frame can carry
	MaxSecretSize = 1<<16 - 1
)

var (
	// ErrPadTooSmall indicates the secret does not fit the pad size
	ErrPadTooSmall = errors.New("shamir: pad size too small for secret")

	// ErrInvalidPad indicates a pad size that is not a positive multiple
	// of the 32-byte chunk size
	ErrInvalidPad = errors.New("shamir: pad size must be a positive multiple of 32")

	// ErrInvalidFrame indicates a combined result whose framing is corrupt
	ErrInvalidFrame = errors.New("shamir: invalid secret frame")

	// ErrCombineFailed indicates recombination did not yield a secret.
	// Too few shares, inconsistent shares and corrupt shares are reported
	// identically.
	ErrCombineFailed = errors.New("shamir: combine failed")
)

// ShareSize returns the byte length of every share produced for the given
// pad size, or 0 for an invalid pad.
func ShareSize(pad int) int {
	if pad <= 0 || pad%ChunkSize != 0 {
		return 0
	}
	return ShareCharsPerChunk * (pad / ChunkSize)
}

// Frame wraps a secret in the fixed-size format handed to Split: a 2-byte
// big-endian length followed by the secret and zero padding up to pad bytes.
func Frame(secret []byte, pad int) ([]byte, error) {
	if pad <= 0 || pad%ChunkSize != 0 {
		return nil, ErrInvalidPad
	}
	if len(secret) > MaxSecretSize || len(secret)+frameHeaderSize > pad {
		return nil, ErrPadTooSmall
	}
	framed := make([]byte, pad)
	binary.BigEndian.PutUint16(framed[:frameHeaderSize], uint16(len(secret)))
	copy(framed[frameHeaderSize:], secret)
	return framed, nil
}

// Unframe extracts the secret from a framed value produced by Frame. A
// recombined value that fails here is just a failed combination; the error
// carries no information about which shares caused it.
func Unframe(framed []byte) ([]byte, error) {
	if len(framed) < frameHeaderSize {
		return nil, ErrInvalidFrame
	}
	n := int(binary.BigEndian.Uint16(framed[:frameHeaderSize]))
	if n > len(framed)-frameHeaderSize {
		return nil, ErrInvalidFrame
	}
	out := make([]byte, n)
	copy(out, framed[frameHeaderSize:frameHeaderSize+n])
	return out, nil
}

// Split divides a framed secret into total shares, any threshold of which
// reconstruct it. The input must be a pad-sized frame produced by Frame.
func Split(framed []byte, threshold, total int) ([][]byte, error) {
	if len(framed) == 0 || len(framed)%ChunkSize != 0 {
		return nil, ErrInvalidPad
	}
	if threshold < 1 {
		return nil, fmt.Errorf("shamir: threshold must be at least 1, got %d", threshold)
	}
	if total < threshold {
		return nil, fmt.Errorf("shamir: total shares (%d) must be >= threshold (%d)", total, threshold)
	}
	if total > 255 {
		return nil, fmt.Errorf("shamir: total shares cannot exceed 255, got %d", total)
	}

	shareStrings, err := sssa.Create(threshold, total, string(framed))
	if err != nil {
		return nil, fmt.Errorf("shamir: failed to split secret: %w", err)
	}

	want := ShareSize(len(framed))
	shares := make([][]byte, len(shareStrings))
	for i, s := range shareStrings {
		if len(s) != want {
			return nil, fmt.Errorf("shamir: unexpected share length %d, want %d", len(s), want)
		}
		shares[i] = []byte(s)
	}
	return shares, nil
}

// Combine reconstructs the framed secret from threshold or more shares.
// Combining shares of different splits does not fail here; it yields a
// framed value that fails Unframe or the authentication gate downstream.
// The caller decides, via that gate, whether the combination was meaningful.
func Combine(shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrCombineFailed
	}
	size := len(shares[0])
	if size == 0 || size%ShareCharsPerChunk != 0 {
		return nil, ErrCombineFailed
	}
	seen := make(map[string]struct{}, len(shares))
	shareStrings := make([]string, len(shares))
	for i, s := range shares {
		if len(s) != size {
			return nil, ErrCombineFailed
		}
		str := string(s)
		if !sssa.IsValidShare(str) {
			return nil, ErrCombineFailed
		}
		// Duplicate shares would collapse interpolation points
		if _, dup := seen[str]; dup {
			return nil, ErrCombineFailed
		}
		seen[str] = struct{}{}
		shareStrings[i] = str
	}

	framed, err := sssa.Combine(shareStrings)
	if err != nil {
		return nil, ErrCombineFailed
	}

	// sssa.Combine strips trailing NUL bytes from the recombined value,
	// which removes the zero padding and any trailing NULs belonging to
	// the secret itself. The pad size is implied by the share geometry,
	// so the frame is restored to its full length before returning.
	pad := ChunkSize * (size / ShareCharsPerChunk)
	if len(framed) > pad {
		return nil, ErrCombineFailed
	}
	out := make([]byte, pad)
	copy(out, framed)
	return out, nil
}
