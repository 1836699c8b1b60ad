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

// Package authgate implements the final authentication step of a
// recovery run. Every secret a recovery kit can legitimately produce,
// real or decoy, has a verifier entry in a shuffled catalog. A
// reconstructed candidate is accepted only if its keyed tag matches
// one of the entries. The catalog never records which entry belongs
// to the real secret.
package authgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
)

var (
	// ErrIntegrityFailure is the only error Verify returns. It covers
	// garbage reconstructions and any tampering with the catalog.
	ErrIntegrityFailure = errors.New("authgate: integrity check failed")

	// ErrEmptyCatalog is returned when building a catalog with no secrets.
	ErrEmptyCatalog = errors.New("authgate: catalog requires at least one secret")
)

const (
	// TagSize is the length of a verifier tag in bytes.
	TagSize = sha256.Size

	hkdfInfo = "recoverykit final-auth v1"
)

// tagContext is the fixed message the verifier key authenticates. The
// binding to the secret comes through the key, not the message.
var tagContext = []byte("recoverykit verifier tag v1")

// Entry is one verifier in the catalog. Salt is public; Tag is
// HMAC-SHA256 under a key derived from the secret and the salt.
type Entry struct {
	Salt []byte `json:"salt"`
	Tag  []byte `json:"tag"`
}

// Catalog holds the shuffled verifier entries for a kit.
type Catalog struct {
	Entries []Entry `json:"entries"`
}

// deriveTag computes the verifier tag for secret under salt.
func deriveTag(secret, salt []byte) ([]byte, error) {
	kr := hkdf.New(sha256.New, secret, salt, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kr, key); err != nil {
		return nil, err
	}
	defer zeroize.Bytes(key)

	mac := hmac.New(sha256.New, key)
	mac.Write(tagContext)
	return mac.Sum(nil), nil
}

// Build creates a catalog with one entry per secret and shuffles the
// entries so their order carries no information about which secret is
// real. The caller passes the real secret and all decoy secrets in
// any order.
func Build(rng *rand.Source, secrets [][]byte) (*Catalog, error) {
	if len(secrets) == 0 {
		return nil, ErrEmptyCatalog
	}
	entries := make([]Entry, 0, len(secrets))
	for _, secret := range secrets {
		salt, err := rng.Salt()
		if err != nil {
			return nil, err
		}
		tag, err := deriveTag(secret, salt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Salt: salt, Tag: tag})
	}
	if err := rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	}); err != nil {
		return nil, err
	}
	return &Catalog{Entries: entries}, nil
}

// Verify checks candidate against every entry in the catalog. It
// always visits all entries so the work done does not depend on which
// entry, if any, matches. The result does not identify the matching
// entry.
func (c *Catalog) Verify(candidate []byte) error {
	matched := 0
	for _, e := range c.Entries {
		tag, err := deriveTag(candidate, e.Salt)
		if err != nil {
			return ErrIntegrityFailure
		}
		if hmac.Equal(tag, e.Tag) {
			matched = 1
		}
	}
	if matched == 0 {
		return ErrIntegrityFailure
	}
	return nil
}
