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

package vault

import (
	"bytes"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain ascii", "Fluffy", "Fluffy"},
		{"nfkc fold", "ﬁrst", "first"}, // fi ligature
		{"nul stripped", "a\x00b", "ab"},
		{"compatibility digits", "１２", "12"}, // fullwidth 1, 2
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := strings.Repeat("x", 500)
	if got := Normalize(long); len(got) != maxNormalizedRunes {
		t.Fatalf("expected %d runes, got %d", maxNormalizedRunes, len(got))
	}
}

func TestHashText(t *testing.T) {
	a := HashText("Fluffy")
	if len(a) != 32 {
		t.Fatalf("expected 32 byte digest, got %d", len(a))
	}
	// Forms that normalize identically hash identically
	b := HashText("ﬁrst")
	c := HashText("first")
	if !bytes.Equal(b, c) {
		t.Fatal("normalization-equal texts hash differently")
	}
	if bytes.Equal(a, b) {
		t.Fatal("distinct texts hash identically")
	}
}

func TestQuestionHash(t *testing.T) {
	alts := []string{"red", "green", "blue"}
	h1 := QuestionHash("favorite color?", alts)

	// Alternative order does not matter
	h2 := QuestionHash("favorite color?", []string{"blue", "red", "green"})
	if !bytes.Equal(h1, h2) {
		t.Fatal("alternative order changed the question hash")
	}

	// Text edits do
	h3 := QuestionHash("favourite colour?", alts)
	if bytes.Equal(h1, h3) {
		t.Fatal("different question text produced the same hash")
	}
	h4 := QuestionHash("favorite color?", []string{"red", "green", "cyan"})
	if bytes.Equal(h1, h4) {
		t.Fatal("different alternatives produced the same hash")
	}
}

func TestAAD(t *testing.T) {
	q := HashText("question")
	a := HashText("answer")

	aad1 := AAD(q, a, 1, 1)
	aad2 := AAD(q, a, 1, 1)
	if !bytes.Equal(aad1, aad2) {
		t.Fatal("AAD is not deterministic")
	}

	if bytes.Equal(aad1, AAD(q, a, 2, 1)) {
		t.Fatal("algorithm byte not bound into AAD")
	}
	if bytes.Equal(aad1, AAD(q, a, 1, 2)) {
		t.Fatal("version byte not bound into AAD")
	}
	if bytes.Equal(aad1, AAD(a, q, 1, 1)) {
		t.Fatal("hash order not significant in AAD")
	}
}
