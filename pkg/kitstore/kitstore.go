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

// Package kitstore persists recovery kits through a storage.Backend.
//
// The on-disk format is versioned JSON. Nothing role-bearing is ever
// written: a stored kit holds questions, alternatives, sealed blobs,
// policies and the authentication catalog, all of which are safe to
// disclose to an attacker who must still brute-force answers through
// the memory-hard KDF.
package kitstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-recoverykit/pkg/authgate"
	"github.com/jeremyhahn/go-recoverykit/pkg/setup"
	"github.com/jeremyhahn/go-recoverykit/pkg/storage"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

// FormatVersion is the kit file format version this package writes.
const FormatVersion = 1

var (
	// ErrUnsupportedVersion indicates a kit file written by a newer
	// format version
	ErrUnsupportedVersion = errors.New("kitstore: unsupported kit format version")

	// ErrCorrupt indicates a kit file that does not parse or fails the
	// vault's structural invariants
	ErrCorrupt = errors.New("kitstore: corrupt kit file")
)

type alternativeJSON struct {
	ID     uuid.UUID `json:"id"`
	Text   string    `json:"text"`
	Hash   []byte    `json:"hash"`
	Salt   []byte    `json:"salt"`
	Time   uint32    `json:"kdf_time"`
	Memory uint32    `json:"kdf_memory_kib"`
	Sealed [][]byte  `json:"sealed"`
}

type questionJSON struct {
	ID           uuid.UUID         `json:"id"`
	Text         string            `json:"text"`
	Tier         int               `json:"tier"`
	Hash         []byte            `json:"hash"`
	Alternatives []alternativeJSON `json:"alternatives"`
}

type policyJSON struct {
	Threshold int   `json:"threshold"`
	Critical  []int `json:"critical"`
}

type kitJSON struct {
	Version   int              `json:"version"`
	Questions []questionJSON   `json:"questions"`
	Policy    policyJSON       `json:"policy"`
	Decoys    []policyJSON     `json:"decoy_policies,omitempty"`
	Catalog   authgate.Catalog `json:"catalog"`
}

// Save serializes the kit and stores it under key.
func Save(backend storage.Backend, key string, kit *setup.Kit) error {
	doc := kitJSON{
		Version: FormatVersion,
		Policy:  encodePolicy(kit.Vault.Policy()),
		Catalog: *kit.Catalog,
	}
	for _, dp := range kit.Vault.DecoyPolicies() {
		doc.Decoys = append(doc.Decoys, encodePolicy(dp))
	}
	for _, q := range kit.Vault.Questions() {
		qj := questionJSON{
			ID:   q.ID,
			Text: q.Text,
			Tier: int(q.Tier),
			Hash: q.Hash,
		}
		for _, alt := range q.Alternatives {
			qj.Alternatives = append(qj.Alternatives, alternativeJSON{
				ID:     alt.ID,
				Text:   alt.Text,
				Hash:   alt.Hash,
				Salt:   alt.Salt,
				Time:   alt.Cost.Time,
				Memory: alt.Cost.Memory,
				Sealed: alt.Sealed,
			})
		}
		doc.Questions = append(doc.Questions, qj)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("kitstore: marshal: %w", err)
	}
	return backend.Put(key, data, storage.DefaultOptions())
}

// Load reads and validates the kit stored under key. The vault's
// structural invariants, including the uniform sealed blob length, are
// re-checked on every load so a tampered or truncated file is caught
// before any recovery attempt.
func Load(backend storage.Backend, key string) (*vault.Vault, *authgate.Catalog, error) {
	data, err := backend.Get(key)
	if err != nil {
		return nil, nil, err
	}

	var doc kitJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}

	questions := make([]vault.Question, len(doc.Questions))
	for i, qj := range doc.Questions {
		q := vault.Question{
			ID:   qj.ID,
			Text: qj.Text,
			Tier: vault.Tier(qj.Tier),
			Hash: qj.Hash,
		}
		for _, aj := range qj.Alternatives {
			q.Alternatives = append(q.Alternatives, vault.Alternative{
				ID:     aj.ID,
				Text:   aj.Text,
				Hash:   aj.Hash,
				Salt:   aj.Salt,
				Cost:   vault.KDFCost{Time: aj.Time, Memory: aj.Memory},
				Sealed: aj.Sealed,
			})
		}
		questions[i] = q
	}

	decoys := make([]vault.RecoveryPolicy, len(doc.Decoys))
	for i, pj := range doc.Decoys {
		decoys[i] = decodePolicy(pj)
	}

	v, err := vault.Load(questions, decodePolicy(doc.Policy), decoys)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(doc.Catalog.Entries) == 0 {
		return nil, nil, fmt.Errorf("%w: empty catalog", ErrCorrupt)
	}
	catalog := doc.Catalog
	return v, &catalog, nil
}

func encodePolicy(p vault.RecoveryPolicy) policyJSON {
	return policyJSON{Threshold: p.Threshold, Critical: p.Critical}
}

func decodePolicy(p policyJSON) vault.RecoveryPolicy {
	return vault.RecoveryPolicy{Threshold: p.Threshold, Critical: p.Critical}
}
