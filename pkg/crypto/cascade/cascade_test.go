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

package cascade

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x5a}, KeySize)
}

func TestSealOpenRoundTrip(t *testing.T) {
	adapter := New(rand.NewSource())
	plaintext := []byte("share payload bytes")
	aad := []byte("qhash|althash|1")

	blob, err := adapter.Seal(testKey(), plaintext, aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(blob) != SealedSize(len(plaintext)) {
		t.Fatalf("blob length %d, expected %d", len(blob), SealedSize(len(plaintext)))
	}

	got, err := adapter.Open(testKey(), blob, aad)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestOpenFailuresAreUniform(t *testing.T) {
	adapter := New(rand.NewSource())
	plaintext := bytes.Repeat([]byte{0x01}, 64)
	aad := []byte("context")

	blob, err := adapter.Seal(testKey(), plaintext, aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	wrongKey := bytes.Repeat([]byte{0x5b}, KeySize)

	corrupted := append([]byte(nil), blob...)
	corrupted[len(corrupted)-1] ^= 0xff

	innerCorrupted := append([]byte(nil), blob...)
	innerCorrupted[2+2*12] ^= 0xff // first ciphertext byte

	badVersion := append([]byte(nil), blob...)
	badVersion[0] = 0x7f

	tests := []struct {
		name string
		key  []byte
		blob []byte
		aad  []byte
	}{
		{"wrong key", wrongKey, blob, aad},
		{"corrupted outer tag", testKey(), corrupted, aad},
		{"corrupted ciphertext", testKey(), innerCorrupted, aad},
		{"wrong aad", testKey(), blob, []byte("other context")},
		{"unknown version", testKey(), badVersion, aad},
		{"truncated blob", testKey(), blob[:Overhead-1], aad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Open(tt.key, tt.blob, tt.aad)
			if !errors.Is(err, ErrOpenFailed) {
				t.Fatalf("expected ErrOpenFailed, got %v", err)
			}
		})
	}
}

func TestEqualPlaintextsEqualLengths(t *testing.T) {
	adapter := New(rand.NewSource())
	aad := []byte("aad")

	a, err := adapter.Seal(testKey(), bytes.Repeat([]byte{0xaa}, 129), aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := adapter.Seal(testKey(), bytes.Repeat([]byte{0xbb}, 129), aad)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("equal plaintexts produced different blob lengths: %d vs %d", len(a), len(b))
	}
}

func TestSealsAreRandomized(t *testing.T) {
	adapter := New(rand.NewSource())
	plaintext := []byte("same payload")
	aad := []byte("aad")

	a, _ := adapter.Seal(testKey(), plaintext, aad)
	b, _ := adapter.Seal(testKey(), plaintext, aad)
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext are identical; nonce reuse")
	}
}

func TestInvalidKeySize(t *testing.T) {
	adapter := New(rand.NewSource())
	if _, err := adapter.Seal([]byte("short"), []byte("x"), nil); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := adapter.Open([]byte("short"), make([]byte, Overhead), nil); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}
