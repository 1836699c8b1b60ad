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
	"github.com/google/uuid"
)

// Tier classifies a question's contribution to recovery.
type Tier int

const (
	// TierStandard questions count toward the numeric threshold
	TierStandard Tier = iota

	// TierCritical questions must always be answered correctly; no amount
	// of standard correctness bypasses them
	TierCritical
)

// String returns the string representation of the tier
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	default:
		return "standard"
	}
}

// Role classifies what an alternative's sealed payload carries in the real
// bundle. Roles exist only in memory during setup and build validation;
// they are never serialized, and nothing in a stored kit reveals them.
type Role int

const (
	// RoleDummy marks an alternative whose real-bundle payload is a share
	// of a throwaway secret
	RoleDummy Role = iota

	// RoleReal marks the alternative whose real-bundle payload is a share
	// of the protected secret
	RoleReal
)

// KDFCost carries the per-alternative Argon2id cost parameters stored in
// the kit.
type KDFCost struct {
	// Time is the Argon2id time cost
	Time uint32

	// Memory is the Argon2id memory cost in KiB
	Memory uint32
}

// Alternative is one selectable answer bound to a sealed share per bundle.
type Alternative struct {
	// ID uniquely identifies the alternative within the vault
	ID uuid.UUID

	// Text is the answer text shown to the user
	Text string

	// Hash is the SHA3-256 digest of the normalized text
	Hash []byte

	// Salt is the per-alternative KDF salt
	Salt []byte

	// Cost holds the Argon2id parameters for this alternative
	Cost KDFCost

	// Sealed holds one cascade-sealed payload per bundle: index 0 is the
	// real bundle, 1..n are decoy bundles. All blobs across the vault have
	// identical length.
	Sealed [][]byte

	// role is build-time only and deliberately unexported; see Role.
	role Role
}

// Role reports the alternative's real-bundle role. Only setup code and
// build validation call this; it is unavailable once a vault has been
// through serialization.
func (a *Alternative) Role() Role {
	return a.role
}

// Question is one knowledge question with its alternatives.
type Question struct {
	// ID uniquely identifies the question
	ID uuid.UUID

	// Text is the question shown to the user
	Text string

	// Tier is the question's recovery tier
	Tier Tier

	// Hash is the integrity digest over text and alternatives
	Hash []byte

	// Alternatives holds the selectable answers, each with sealed payloads
	Alternatives []Alternative
}

// RecoveryPolicy fixes the reconstruction requirements for one bundle.
// Policies reference questions by index into the vault's flat question
// list; they never alias question state.
type RecoveryPolicy struct {
	// Threshold is the number of standard-tier shares required
	Threshold int

	// Critical lists the indices of questions that must all yield a usable
	// share for this bundle
	Critical []int
}

// Submission identifies one chosen alternative for one question during a
// recovery attempt. The key is derived from the chosen alternative's stored
// text; brute-forcing selections is priced by the combinatorial space times
// the per-guess KDF cost.
type Submission struct {
	// QuestionID identifies the question being answered
	QuestionID uuid.UUID

	// AlternativeID identifies the chosen alternative
	AlternativeID uuid.UUID
}
