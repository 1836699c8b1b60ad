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

// Package vault holds the immutable structure a recovery kit is built
// around: questions, alternatives, sealed shares and recovery policies.
//
// A vault is created once at setup, validated at construction and never
// mutated afterwards. Recovery only reads it. The central invariant the
// build enforces is that every sealed blob in the vault has exactly the
// same byte length and framing; a kit that violates this leaks which
// alternatives matter and must never be produced.
package vault

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrTooFewAlternatives indicates a question with fewer than two
	// alternatives
	ErrTooFewAlternatives = errors.New("vault: question needs at least two alternatives")

	// ErrDuplicateRealShare indicates a question with more than one
	// real-bearing alternative
	ErrDuplicateRealShare = errors.New("vault: question has more than one real share")

	// ErrMissingRealShare indicates a question with no real-bearing
	// alternative
	ErrMissingRealShare = errors.New("vault: question has no real share")

	// ErrLengthMismatch indicates sealed blobs of differing lengths
	ErrLengthMismatch = errors.New("vault: sealed share length mismatch")

	// ErrInvalidPolicy indicates a recovery policy referencing unknown
	// questions or an unsatisfiable threshold
	ErrInvalidPolicy = errors.New("vault: invalid recovery policy")

	// ErrQuestionNotFound indicates an unknown question identifier
	ErrQuestionNotFound = errors.New("vault: question not found")
)

// Vault is the immutable container for a recovery kit's questions and
// policies. The zero value is unusable; construct with Build.
type Vault struct {
	questions  []Question
	policy     RecoveryPolicy
	decoys     []RecoveryPolicy
	sealedSize int
	byID       map[uuid.UUID]int
}

// Build validates and assembles a vault. All violations are fatal: a vault
// is either fully valid or not constructed, never silently corrected.
//
// The questions slice is copied; callers cannot alias vault state through
// it afterwards. decoys carries one policy per decoy bundle and may be
// empty.
func Build(questions []Question, policy RecoveryPolicy, decoys []RecoveryPolicy) (*Vault, error) {
	return build(questions, policy, decoys, true)
}

// Load assembles a vault from deserialized kit data. Role markings are
// build-time state and do not survive serialization, so the one-real-
// share-per-question check is skipped; every structural and length
// invariant still applies.
func Load(questions []Question, policy RecoveryPolicy, decoys []RecoveryPolicy) (*Vault, error) {
	return build(questions, policy, decoys, false)
}

func build(questions []Question, policy RecoveryPolicy, decoys []RecoveryPolicy, requireRoles bool) (*Vault, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidPolicy)
	}

	bundles := 1 + len(decoys)
	sealedSize := -1
	standardWithReal := 0

	for qi := range questions {
		q := &questions[qi]
		if len(q.Alternatives) < 2 {
			return nil, fmt.Errorf("%w: question %q has %d", ErrTooFewAlternatives, q.ID, len(q.Alternatives))
		}

		realSeen := false
		for ai := range q.Alternatives {
			alt := &q.Alternatives[ai]

			if alt.role == RoleReal {
				if realSeen {
					return nil, fmt.Errorf("%w: question %q", ErrDuplicateRealShare, q.ID)
				}
				realSeen = true
			}

			if len(alt.Sealed) != bundles {
				return nil, fmt.Errorf("%w: alternative %q has %d bundles, want %d",
					ErrLengthMismatch, alt.ID, len(alt.Sealed), bundles)
			}
			for _, blob := range alt.Sealed {
				if sealedSize == -1 {
					sealedSize = len(blob)
				}
				if len(blob) == 0 || len(blob) != sealedSize {
					return nil, fmt.Errorf("%w: alternative %q has blob of %d bytes, want %d",
						ErrLengthMismatch, alt.ID, len(blob), sealedSize)
				}
			}
		}
		if requireRoles && !realSeen {
			return nil, fmt.Errorf("%w: question %q", ErrMissingRealShare, q.ID)
		}
		if q.Tier == TierStandard {
			standardWithReal++
		}
	}

	if err := validatePolicy(policy, questions, standardWithReal); err != nil {
		return nil, err
	}
	for i, dp := range decoys {
		// Decoy bundles cover every alternative, so any threshold up to the
		// question count is satisfiable.
		if err := validateDecoyPolicy(dp, questions); err != nil {
			return nil, fmt.Errorf("decoy bundle %d: %w", i+1, err)
		}
	}

	v := &Vault{
		questions:  make([]Question, len(questions)),
		policy:     clonePolicy(policy),
		decoys:     make([]RecoveryPolicy, len(decoys)),
		sealedSize: sealedSize,
		byID:       make(map[uuid.UUID]int, len(questions)),
	}
	copy(v.questions, questions)
	for i := range v.questions {
		alts := make([]Alternative, len(v.questions[i].Alternatives))
		copy(alts, v.questions[i].Alternatives)
		v.questions[i].Alternatives = alts
	}
	for i, dp := range decoys {
		v.decoys[i] = clonePolicy(dp)
	}
	for i := range v.questions {
		if _, dup := v.byID[v.questions[i].ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidPolicy, v.questions[i].ID)
		}
		v.byID[v.questions[i].ID] = i
	}
	return v, nil
}

// Questions returns the vault's questions in setup order.
func (v *Vault) Questions() []Question {
	out := make([]Question, len(v.questions))
	copy(out, v.questions)
	return out
}

// QuestionByID returns the question with the given identifier.
func (v *Vault) QuestionByID(id uuid.UUID) (*Question, error) {
	idx, ok := v.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrQuestionNotFound, id)
	}
	q := v.questions[idx]
	return &q, nil
}

// QuestionIndex returns the flat index of the question with the given
// identifier. Policies reference questions by this index.
func (v *Vault) QuestionIndex(id uuid.UUID) (int, error) {
	idx, ok := v.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrQuestionNotFound, id)
	}
	return idx, nil
}

// AlternativesFor returns the alternatives of the given question.
func (v *Vault) AlternativesFor(questionID uuid.UUID) ([]Alternative, error) {
	q, err := v.QuestionByID(questionID)
	if err != nil {
		return nil, err
	}
	out := make([]Alternative, len(q.Alternatives))
	copy(out, q.Alternatives)
	return out, nil
}

// Policy returns the real bundle's recovery policy.
func (v *Vault) Policy() RecoveryPolicy {
	return clonePolicy(v.policy)
}

// DecoyPolicies returns one policy per decoy bundle, in bundle order.
func (v *Vault) DecoyPolicies() []RecoveryPolicy {
	out := make([]RecoveryPolicy, len(v.decoys))
	for i, dp := range v.decoys {
		out[i] = clonePolicy(dp)
	}
	return out
}

// Bundles returns the number of share bundles (1 real + decoys).
func (v *Vault) Bundles() int {
	return 1 + len(v.decoys)
}

// SealedSize returns L_seal, the uniform sealed-blob length.
func (v *Vault) SealedSize() int {
	return v.sealedSize
}

func validatePolicy(p RecoveryPolicy, questions []Question, standardWithReal int) error {
	if p.Threshold < 1 {
		return fmt.Errorf("%w: threshold %d", ErrInvalidPolicy, p.Threshold)
	}
	if p.Threshold > standardWithReal {
		return fmt.Errorf("%w: threshold %d exceeds %d standard questions",
			ErrInvalidPolicy, p.Threshold, standardWithReal)
	}
	if err := validateCritical(p.Critical, questions); err != nil {
		return err
	}
	// The real bundle's critical set is derived from question tiers and
	// must match them exactly.
	critical := make(map[int]struct{}, len(p.Critical))
	for _, idx := range p.Critical {
		critical[idx] = struct{}{}
	}
	for i := range questions {
		_, listed := critical[i]
		if questions[i].Tier == TierCritical && !listed {
			return fmt.Errorf("%w: critical question %d missing from policy", ErrInvalidPolicy, i)
		}
		if questions[i].Tier == TierStandard && listed {
			return fmt.Errorf("%w: standard question %d listed as critical", ErrInvalidPolicy, i)
		}
	}
	return nil
}

func validateDecoyPolicy(p RecoveryPolicy, questions []Question) error {
	if p.Threshold < 1 || p.Threshold > len(questions) {
		return fmt.Errorf("%w: threshold %d", ErrInvalidPolicy, p.Threshold)
	}
	return validateCritical(p.Critical, questions)
}

func validateCritical(critical []int, questions []Question) error {
	seen := make(map[int]struct{}, len(critical))
	for _, idx := range critical {
		if idx < 0 || idx >= len(questions) {
			return fmt.Errorf("%w: critical index %d out of range", ErrInvalidPolicy, idx)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate critical index %d", ErrInvalidPolicy, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func clonePolicy(p RecoveryPolicy) RecoveryPolicy {
	out := RecoveryPolicy{Threshold: p.Threshold}
	if len(p.Critical) > 0 {
		out.Critical = make([]int, len(p.Critical))
		copy(out.Critical, p.Critical)
	}
	return out
}

// MarkReal sets the real-bearing role on an alternative. Only setup code
// calls this, before Build; it exists so the builder can assemble
// alternatives without exporting the role field.
func (a *Alternative) MarkReal() {
	a.role = RoleReal
}
