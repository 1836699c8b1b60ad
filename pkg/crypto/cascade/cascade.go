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

// Package cascade provides two-layer authenticated encryption for sealed
// shares.
//
// A sealed blob is AES-256-GCM wrapped inside ChaCha20-Poly1305, applied in
// that fixed order with subkeys derived from the single input key by an
// HKDF-SHA256 key schedule. The input key is never handed to either cipher
// directly, and the two layers never share a key. Breaking a sealed share
// therefore requires breaking both ciphers, and a failure of either tag is
// reported identically to a failure of the other.
package cascade

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	_ "crypto/sha256"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the required input key size in bytes
	KeySize = 32

	// Version identifies the sealed-blob framing version
	Version byte = 1

	// AlgorithmAESChaCha identifies the cascade order: AES-256-GCM inner,
	// ChaCha20-Poly1305 outer. The algorithm byte is part of the framing so
	// a future cascade can coexist without ambiguity; there is deliberately
	// no open plugin interface behind it.
	AlgorithmAESChaCha byte = 0x01

	nonceSize = 12
	tagSize   = 16

	// Overhead is the fixed per-seal expansion in bytes: version and
	// algorithm bytes, one nonce and one tag per layer.
	Overhead = 2 + 2*nonceSize + 2*tagSize
)

// Subkey derivation contexts. Distinct info strings are the key-separation
// mechanism; changing either is a breaking format change.
var (
	infoInner = []byte("recoverykit cascade layer 1 aes256gcm")
	infoOuter = []byte("recoverykit cascade layer 2 chacha20poly1305")
)

var (
	// ErrInvalidKeySize is returned when the input key is not KeySize bytes
	ErrInvalidKeySize = errors.New("cascade: invalid key size")

	// ErrOpenFailed is returned for every decryption failure. Wrong key,
	// forged tag and corrupted ciphertext all map to this one error;
	// callers absorb it and treat the slot as having no usable share.
	ErrOpenFailed = errors.New("cascade: open failed")
)

// Adapter seals and opens share payloads under cascade authenticated
// encryption. The random source is used for nonce generation at seal time
// only; Open is deterministic.
type Adapter struct {
	schedule *kdf.HKDFAdapter
	rng      *rand.Source
}

// New creates a cascade adapter using the given random source for nonces.
func New(rng *rand.Source) *Adapter {
	return &Adapter{
		schedule: kdf.NewHKDFAdapter(),
		rng:      rng,
	}
}

// Seal encrypts plaintext under both cascade layers and returns the framed
// blob. Equal-length plaintexts always produce equal-length blobs.
func (a *Adapter) Seal(key, plaintext, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	innerKey, outerKey, err := a.subkeys(key)
	if err != nil {
		return nil, err
	}
	defer zeroize.Slices(innerKey, outerKey)

	innerAEAD, outerAEAD, err := newLayers(innerKey, outerKey)
	if err != nil {
		return nil, err
	}

	innerNonce, err := a.rng.Bytes(nonceSize)
	if err != nil {
		return nil, err
	}
	outerNonce, err := a.rng.Bytes(nonceSize)
	if err != nil {
		return nil, err
	}

	header := []byte{Version, AlgorithmAESChaCha}
	layerAAD := layerAAD(header, aad)

	inner := innerAEAD.Seal(nil, innerNonce, plaintext, layerAAD)
	outer := outerAEAD.Seal(nil, outerNonce, inner, layerAAD)

	blob := make([]byte, 0, Overhead+len(plaintext))
	blob = append(blob, header...)
	blob = append(blob, innerNonce...)
	blob = append(blob, outerNonce...)
	blob = append(blob, outer...)
	return blob, nil
}

// Open decrypts a framed blob. Any failure, at any layer and for any
// reason, yields ErrOpenFailed.
func (a *Adapter) Open(key, blob, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(blob) < Overhead {
		return nil, ErrOpenFailed
	}
	if blob[0] != Version || blob[1] != AlgorithmAESChaCha {
		return nil, ErrOpenFailed
	}

	header := blob[:2]
	innerNonce := blob[2 : 2+nonceSize]
	outerNonce := blob[2+nonceSize : 2+2*nonceSize]
	outer := blob[2+2*nonceSize:]

	innerKey, outerKey, err := a.subkeys(key)
	if err != nil {
		return nil, ErrOpenFailed
	}
	defer zeroize.Slices(innerKey, outerKey)

	innerAEAD, outerAEAD, err := newLayers(innerKey, outerKey)
	if err != nil {
		return nil, ErrOpenFailed
	}

	layerAAD := layerAAD(header, aad)

	inner, err := outerAEAD.Open(nil, outerNonce, outer, layerAAD)
	if err != nil {
		return nil, ErrOpenFailed
	}
	plaintext, err := innerAEAD.Open(nil, innerNonce, inner, layerAAD)
	zeroize.Bytes(inner)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// SealedSize returns the blob length produced by sealing a plaintext of the
// given length. The vault uses this to pre-compute and enforce L_seal.
func SealedSize(plaintextLen int) int {
	return Overhead + plaintextLen
}

func (a *Adapter) subkeys(key []byte) ([]byte, []byte, error) {
	inner, err := a.schedule.DeriveKey(key, &kdf.KDFParams{
		Algorithm: kdf.AlgorithmHKDF,
		Info:      infoInner,
		KeyLength: KeySize,
		Hash:      crypto.SHA256,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cascade: inner subkey derivation failed: %w", err)
	}
	outer, err := a.schedule.DeriveKey(key, &kdf.KDFParams{
		Algorithm: kdf.AlgorithmHKDF,
		Info:      infoOuter,
		KeyLength: KeySize,
		Hash:      crypto.SHA256,
	})
	if err != nil {
		zeroize.Bytes(inner)
		return nil, nil, fmt.Errorf("cascade: outer subkey derivation failed: %w", err)
	}
	return inner, outer, nil
}

func newLayers(innerKey, outerKey []byte) (cipher.AEAD, cipher.AEAD, error) {
	block, err := aes.NewCipher(innerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cascade: failed to create AES cipher: %w", err)
	}
	innerAEAD, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("cascade: failed to create GCM: %w", err)
	}
	outerAEAD, err := chacha20poly1305.New(outerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cascade: failed to create ChaCha20-Poly1305: %w", err)
	}
	return innerAEAD, outerAEAD, nil
}

func layerAAD(header, aad []byte) []byte {
	out := make([]byte, 0, len(header)+len(aad))
	out = append(out, header...)
	out = append(out, aad...)
	return out
}
