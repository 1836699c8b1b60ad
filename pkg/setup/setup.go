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

// Package setup builds recovery kits. A kit binds a secret to a set of
// self-authored knowledge questions: the correct alternative of every
// question receives a Shamir share of the secret, every other
// alternative receives a dummy share, and optional decoy bundles give
// plausible cover secrets reachable under their own policies. All of
// it is sealed under per-answer memory-hard keys so the stored kit
// reveals nothing about which answers are correct.
package setup

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/authgate"
	"github.com/jeremyhahn/go-recoverykit/pkg/codec"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/cascade"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-recoverykit/pkg/hardness"
	"github.com/jeremyhahn/go-recoverykit/pkg/threshold/shamir"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

var (
	ErrEmptySecret       = errors.New("setup: secret must not be empty")
	ErrNoQuestions       = errors.New("setup: at least one question required")
	ErrBadAnswerIndex    = errors.New("setup: answer index out of range")
	ErrDuplicateAlt      = errors.New("setup: duplicate alternative text within question")
	ErrEmptyAlternative  = errors.New("setup: alternative text empty after normalization")
	ErrBadThreshold      = errors.New("setup: threshold out of range")
	ErrEmptyDecoySecret  = errors.New("setup: decoy secret must not be empty")
	ErrDecoySecretLength = errors.New("setup: decoy secret length must match the real secret")
)

// QuestionSpec describes one question before sealing. Answer is the
// index of the correct alternative; it exists only at setup time.
type QuestionSpec struct {
	Text         string
	Tier         vault.Tier
	Alternatives []string
	Answer       int
}

// DecoySpec describes one decoy bundle: the cover secret it protects
// and the independent policy under which it reconstructs. A decoy's
// critical set is its own parameter; it is never inherited from the
// real bundle.
type DecoySpec struct {
	Secret    []byte
	Threshold int
	Critical  []int
}

// Params tunes kit construction. Zero values select production
// defaults.
type Params struct {
	// Pad is the Shamir framing pad size in bytes. Defaults to
	// shamir.DefaultPadSize. All kit secrets must fit within it.
	Pad int

	// Cost holds the per-alternative Argon2id cost parameters. The
	// memory cost must clear the builder's KDF floor. Zero selects the
	// floor itself with a time cost of 1; run calibration for a tuned
	// time cost.
	Cost vault.KDFCost

	// MinBits is the minimum combinatorial hardness accepted for the
	// kit. Defaults to hardness.DefaultMinBits.
	MinBits float64
}

// Kit is a fully built recovery kit: the sealed vault and the final
// authentication catalog.
type Kit struct {
	Vault   *vault.Vault
	Catalog *authgate.Catalog
}

// Builder constructs kits with a fixed KDF adapter and RNG.
type Builder struct {
	kdf     *kdf.Argon2Adapter
	cascade *cascade.Adapter
	rng     *rand.Source
	params  Params
}

// NewBuilder creates a kit builder. The adapter's memory floor bounds
// every per-alternative derivation the builder performs.
func NewBuilder(adapter *kdf.Argon2Adapter, rng *rand.Source, params Params) *Builder {
	if params.Pad == 0 {
		params.Pad = shamir.DefaultPadSize
	}
	if params.Cost.Memory == 0 {
		params.Cost.Memory = adapter.MemoryFloor()
	}
	if params.Cost.Time == 0 {
		params.Cost.Time = kdf.MinArgon2Time
	}
	if params.MinBits == 0 {
		params.MinBits = hardness.DefaultMinBits
	}
	return &Builder{
		kdf:     adapter,
		cascade: cascade.New(rng),
		rng:     rng,
		params:  params,
	}
}

// Build assembles a kit protecting secret behind the given questions.
// threshold is the number of standard-tier questions that must be
// answered correctly; every critical-tier question must additionally
// be answered correctly. Decoy secrets must match the real secret's
// length so their shares are indistinguishable.
func (b *Builder) Build(secret []byte, specs []QuestionSpec, threshold int, decoys []DecoySpec) (*Kit, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if len(specs) == 0 {
		return nil, ErrNoQuestions
	}

	norm, err := normalizeSpecs(specs)
	if err != nil {
		return nil, err
	}

	standard := 0
	criticalIdx := make([]int, 0)
	standardCounts := make([]int, 0, len(specs))
	for i, qs := range specs {
		if qs.Tier == vault.TierCritical {
			criticalIdx = append(criticalIdx, i)
		} else {
			standard++
			standardCounts = append(standardCounts, len(qs.Alternatives))
		}
	}
	if threshold < 1 || threshold > standard {
		return nil, fmt.Errorf("%w: %d of %d standard questions", ErrBadThreshold, threshold, standard)
	}
	if err := b.gateHardness(specs, standardCounts, criticalIdx, threshold); err != nil {
		return nil, err
	}
	for _, d := range decoys {
		if len(d.Secret) == 0 {
			return nil, ErrEmptyDecoySecret
		}
		if len(d.Secret) != len(secret) {
			return nil, ErrDecoySecretLength
		}
	}

	payloads, err := b.buildPayloads(secret, specs, threshold, len(criticalIdx), decoys)
	if err != nil {
		return nil, err
	}

	questions, err := b.sealQuestions(specs, norm, payloads)
	if err != nil {
		return nil, err
	}

	policy := vault.RecoveryPolicy{Threshold: threshold, Critical: criticalIdx}
	decoyPolicies := make([]vault.RecoveryPolicy, len(decoys))
	for i, d := range decoys {
		decoyPolicies[i] = vault.RecoveryPolicy{Threshold: d.Threshold, Critical: append([]int(nil), d.Critical...)}
	}

	v, err := vault.Build(questions, policy, decoyPolicies)
	if err != nil {
		return nil, err
	}

	kitSecrets := make([][]byte, 0, 1+len(decoys))
	kitSecrets = append(kitSecrets, secret)
	for _, d := range decoys {
		kitSecrets = append(kitSecrets, d.Secret)
	}
	catalog, err := authgate.Build(b.rng, kitSecrets)
	if err != nil {
		return nil, err
	}

	return &Kit{Vault: v, Catalog: catalog}, nil
}

// normalized per-question alternative texts, parallel to specs.
func normalizeSpecs(specs []QuestionSpec) ([][]string, error) {
	out := make([][]string, len(specs))
	for i, qs := range specs {
		if len(qs.Alternatives) < 2 {
			return nil, vault.ErrTooFewAlternatives
		}
		if qs.Answer < 0 || qs.Answer >= len(qs.Alternatives) {
			return nil, ErrBadAnswerIndex
		}
		seen := make(map[string]bool, len(qs.Alternatives))
		norm := make([]string, len(qs.Alternatives))
		for j, alt := range qs.Alternatives {
			n := vault.Normalize(alt)
			if n == "" {
				return nil, ErrEmptyAlternative
			}
			if seen[n] {
				return nil, fmt.Errorf("%w: question %d", ErrDuplicateAlt, i)
			}
			seen[n] = true
			norm[j] = n
		}
		out[i] = norm
	}
	return out, nil
}

// gateHardness combines the standard-tier subset space with the
// per-critical-question alternative choices and applies the minimum.
func (b *Builder) gateHardness(specs []QuestionSpec, standardCounts, criticalIdx []int, threshold int) error {
	criticalCounts := make([]int, len(criticalIdx))
	for i, ci := range criticalIdx {
		criticalCounts[i] = len(specs[ci].Alternatives)
	}
	bits, err := hardness.TieredBits(standardCounts, criticalCounts, threshold)
	if err != nil {
		return err
	}
	if bits < b.params.MinBits {
		return fmt.Errorf("%w: %.1f bits, need %.1f", hardness.ErrInsufficientHardness, bits, b.params.MinBits)
	}
	return nil
}

// buildPayloads produces the plaintext payload per alternative per
// bundle: payloads[qi][ai][bundle]. Bundle 0 is the real bundle with
// one real share per question and dummies elsewhere; each decoy
// bundle is a genuine split of the decoy secret across every
// alternative.
func (b *Builder) buildPayloads(secret []byte, specs []QuestionSpec, threshold, criticalCount int, decoys []DecoySpec) ([][][][]byte, error) {
	c, err := codec.New(b.params.Pad)
	if err != nil {
		return nil, err
	}

	// Any t standard shares plus every critical share must
	// reconstruct, and nothing less: split at threshold t + c.
	splitThreshold := threshold + criticalCount
	framed, err := shamir.Frame(secret, b.params.Pad)
	if err != nil {
		return nil, err
	}
	defer zeroize.Bytes(framed)
	realShares, err := shamir.Split(framed, splitThreshold, len(specs))
	if err != nil {
		return nil, err
	}
	defer zeroize.Slices(realShares...)

	dummies, err := codec.NewDummySource(c, b.rng, len(secret), splitThreshold, len(specs))
	if err != nil {
		return nil, err
	}

	totalAlts := 0
	for _, qs := range specs {
		totalAlts += len(qs.Alternatives)
	}

	// Decoy bundle shares, one per alternative, in flat question-major
	// order.
	decoyShares := make([][][]byte, len(decoys))
	for di, d := range decoys {
		dt := d.Threshold + len(d.Critical)
		dframed, err := shamir.Frame(d.Secret, b.params.Pad)
		if err != nil {
			return nil, err
		}
		shares, err := shamir.Split(dframed, dt, totalAlts)
		zeroize.Bytes(dframed)
		if err != nil {
			return nil, err
		}
		decoyShares[di] = shares
	}
	defer func() {
		for _, shares := range decoyShares {
			zeroize.Slices(shares...)
		}
	}()

	payloads := make([][][][]byte, len(specs))
	flat := 0
	for qi, qs := range specs {
		payloads[qi] = make([][][]byte, len(qs.Alternatives))
		for ai := range qs.Alternatives {
			bundles := make([][]byte, 1+len(decoys))
			if ai == qs.Answer {
				bundles[0], err = c.EncodeReal(realShares[qi])
			} else {
				bundles[0], err = dummies.EncodeDummy()
			}
			if err != nil {
				return nil, err
			}
			for di := range decoys {
				bundles[1+di], err = c.EncodeReal(decoyShares[di][flat])
				if err != nil {
					return nil, err
				}
			}
			payloads[qi][ai] = bundles
			flat++
		}
	}
	return payloads, nil
}

// sealQuestions derives the per-alternative key and seals every bundle
// payload under it, assembling the final question structures.
func (b *Builder) sealQuestions(specs []QuestionSpec, norm [][]string, payloads [][][][]byte) ([]vault.Question, error) {
	questions := make([]vault.Question, len(specs))
	for qi, qs := range specs {
		qID, err := uuid.NewRandomFromReader(b.rng.Reader())
		if err != nil {
			return nil, err
		}
		qHash := vault.QuestionHash(qs.Text, qs.Alternatives)
		alts := make([]vault.Alternative, len(qs.Alternatives))

		for ai, altText := range qs.Alternatives {
			altID, err := uuid.NewRandomFromReader(b.rng.Reader())
			if err != nil {
				return nil, err
			}
			salt, err := b.rng.Salt()
			if err != nil {
				return nil, err
			}
			altHash := vault.HashText(altText)

			key, err := b.kdf.DeriveKey([]byte(norm[qi][ai]), &kdf.KDFParams{
				Algorithm: kdf.AlgorithmArgon2id,
				Salt:      salt,
				Memory:    b.params.Cost.Memory,
				Time:      b.params.Cost.Time,
				Threads:   1,
				KeyLength: cascade.KeySize,
			})
			if err != nil {
				return nil, err
			}

			aad := vault.AAD(qHash, altHash, cascade.AlgorithmAESChaCha, cascade.Version)
			sealed := make([][]byte, len(payloads[qi][ai]))
			for bi, payload := range payloads[qi][ai] {
				sealed[bi], err = b.cascade.Seal(key, payload, aad)
				if err != nil {
					zeroize.Bytes(key)
					return nil, err
				}
			}
			zeroize.Bytes(key)

			alts[ai] = vault.Alternative{
				ID:     altID,
				Text:   altText,
				Hash:   altHash,
				Salt:   salt,
				Cost:   b.params.Cost,
				Sealed: sealed,
			}
			if ai == qs.Answer {
				alts[ai].MarkReal()
			}
		}

		questions[qi] = vault.Question{
			ID:           qID,
			Text:         qs.Text,
			Tier:         qs.Tier,
			Hash:         qHash,
			Alternatives: alts,
		}
	}
	return questions, nil
}
