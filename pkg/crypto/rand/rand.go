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

// Package rand supplies the random source used by setup-time operations.
//
// The source is passed explicitly through every call that needs randomness
// (salt generation, dummy-share material, catalog shuffling) instead of
// living in package-level state. Recovery-time code is deterministic given
// its inputs, with the single exception of combination subset sampling,
// which receives the same explicit source.
package rand

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// SaltSize is the salt length in bytes used for every per-answer and
// catalog salt in a recovery kit.
const SaltSize = 16

// Source produces cryptographically secure random material.
type Source struct {
	reader io.Reader
}

// NewSource returns a Source backed by crypto/rand.
func NewSource() *Source {
	return &Source{reader: rand.Reader}
}

// NewSourceFrom returns a Source backed by the given reader. Intended for
// deterministic tests; production callers use NewSource.
func NewSourceFrom(r io.Reader) *Source {
	return &Source{reader: r}
}

// Bytes returns n random bytes.
func (s *Source) Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("rand: invalid length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(s.reader, b); err != nil {
		return nil, fmt.Errorf("rand: failed to read random bytes: %w", err)
	}
	return b, nil
}

// Salt returns a fresh SaltSize-byte salt.
func (s *Source) Salt() ([]byte, error) {
	return s.Bytes(SaltSize)
}

// Intn returns a uniform random integer in [0, n). Used for subset sampling
// and catalog shuffling; rejection sampling keeps the distribution unbiased.
func (s *Source) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("rand: invalid bound %d", n)
	}
	max := ^uint64(0) - (^uint64(0) % uint64(n))
	var buf [8]byte
	for {
		if _, err := io.ReadFull(s.reader, buf[:]); err != nil {
			return 0, fmt.Errorf("rand: failed to read random bytes: %w", err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < max {
			return int(v % uint64(n)), nil
		}
	}
}

// Shuffle permutes the first n elements using the Fisher-Yates algorithm
// driven by this source.
func (s *Source) Shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := s.Intn(i + 1)
		if err != nil {
			return err
		}
		swap(i, j)
	}
	return nil
}

// Reader exposes the underlying reader for primitives that take an io.Reader.
func (s *Source) Reader() io.Reader {
	return s.reader
}
