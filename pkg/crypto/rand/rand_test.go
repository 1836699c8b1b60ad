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

package rand

import (
	"bytes"
	"testing"
)

func TestBytes(t *testing.T) {
	s := NewSource()

	b, err := s.Bytes(32)
	if err != nil {
		t.Fatalf("Bytes(32) failed: %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
	if bytes.Equal(b, make([]byte, 32)) {
		t.Fatal("random output is all zeros")
	}

	if _, err := s.Bytes(0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := s.Bytes(-1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestSalt(t *testing.T) {
	s := NewSource()
	a, err := s.Salt()
	if err != nil {
		t.Fatalf("Salt() failed: %v", err)
	}
	if len(a) != SaltSize {
		t.Fatalf("expected %d byte salt, got %d", SaltSize, len(a))
	}
	b, _ := s.Salt()
	if bytes.Equal(a, b) {
		t.Fatal("two salts are identical")
	}
}

func TestIntn(t *testing.T) {
	s := NewSource()
	for i := 0; i < 1000; i++ {
		v, err := s.Intn(7)
		if err != nil {
			t.Fatalf("Intn failed: %v", err)
		}
		if v < 0 || v >= 7 {
			t.Fatalf("Intn out of range: %d", v)
		}
	}
	if _, err := s.Intn(0); err == nil {
		t.Fatal("expected error for zero bound")
	}
}

func TestShuffle(t *testing.T) {
	s := NewSource()
	vals := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if err := s.Shuffle(len(vals), func(i, j int) {
		vals[i], vals[j] = vals[j], vals[i]
	}); err != nil {
		t.Fatalf("Shuffle failed: %v", err)
	}
	seen := make(map[int]bool)
	for _, v := range vals {
		if seen[v] {
			t.Fatalf("duplicate value after shuffle: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 10 {
		t.Fatalf("element lost during shuffle: %v", vals)
	}
}
