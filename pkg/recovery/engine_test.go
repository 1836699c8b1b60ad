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

package recovery

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/setup"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

var testSecret = []byte("the vault master secret bytes!")

// fiveStandardOneCritical is the canonical test kit shape: five
// standard questions, threshold three, one critical question. The
// correct alternative is always index 1.
func fiveStandardOneCritical() []setup.QuestionSpec {
	specs := make([]setup.QuestionSpec, 0, 6)
	for i := 0; i < 5; i++ {
		specs = append(specs, setup.QuestionSpec{
			Text:         fmt.Sprintf("standard question %d", i),
			Tier:         vault.TierStandard,
			Alternatives: []string{fmt.Sprintf("wrong a%d", i), fmt.Sprintf("right %d", i), fmt.Sprintf("wrong b%d", i)},
			Answer:       1,
		})
	}
	specs = append(specs, setup.QuestionSpec{
		Text:         "critical question",
		Tier:         vault.TierCritical,
		Alternatives: []string{"wrong a", "right", "wrong b"},
		Answer:       1,
	})
	return specs
}

func testAdapter(t *testing.T) *kdf.Argon2Adapter {
	t.Helper()
	adapter, err := kdf.NewArgon2idAdapterWithFloor(kdf.AbsoluteMinMemory)
	require.NoError(t, err)
	return adapter
}

func buildKit(t *testing.T, decoys []setup.DecoySpec) *setup.Kit {
	t.Helper()
	b := setup.NewBuilder(testAdapter(t), rand.NewSource(), setup.Params{
		Cost:    vault.KDFCost{Time: 1, Memory: kdf.AbsoluteMinMemory},
		MinBits: 1,
	})
	kit, err := b.Build(testSecret, fiveStandardOneCritical(), 3, decoys)
	require.NoError(t, err)
	return kit
}

func newTestEngine(t *testing.T, kit *setup.Kit) *Engine {
	t.Helper()
	e, err := NewEngine(kit.Vault, kit.Catalog, Config{KDF: testAdapter(t)})
	require.NoError(t, err)
	return e
}

// submit answers question qi with alternative index ai.
func submit(t *testing.T, e *Engine, kit *setup.Kit, qi, ai int) {
	t.Helper()
	q := kit.Vault.Questions()[qi]
	require.NoError(t, e.Submit(vault.Submission{
		QuestionID:    q.ID,
		AlternativeID: q.Alternatives[ai].ID,
	}))
}

func TestScenarioMatrix(t *testing.T) {
	kit := buildKit(t, nil)

	tests := []struct {
		name    string
		answers map[int]int // question index -> alternative index
		wantOK  bool
	}{
		{
			name:    "three correct standard plus correct critical",
			answers: map[int]int{0: 1, 1: 1, 2: 1, 5: 1},
			wantOK:  true,
		},
		{
			name:    "all correct",
			answers: map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1},
			wantOK:  true,
		},
		{
			name:    "four correct standard but wrong critical",
			answers: map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 5: 0},
			wantOK:  false,
		},
		{
			name:    "two correct standard with correct critical",
			answers: map[int]int{0: 1, 1: 1, 5: 1},
			wantOK:  false,
		},
		{
			name:    "critical question never answered",
			answers: map[int]int{0: 1, 1: 1, 2: 1, 3: 1, 4: 1},
			wantOK:  false,
		},
		{
			name:    "three correct among five submitted standard",
			answers: map[int]int{0: 1, 1: 1, 2: 1, 3: 0, 4: 2, 5: 1},
			wantOK:  true,
		},
		{
			name:    "two correct among four submitted standard",
			answers: map[int]int{0: 1, 1: 1, 2: 0, 3: 2, 5: 1},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, kit)
			for qi, ai := range tt.answers {
				submit(t, e, kit, qi, ai)
			}
			secret, err := e.Recover(context.Background())
			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, testSecret, secret)
				assert.Equal(t, StateRecovered, e.State())
			} else {
				require.ErrorIs(t, err, ErrRecoveryFailed)
				assert.Nil(t, secret)
				assert.Equal(t, StateRejected, e.State())
			}
		})
	}
}

func TestDecoyRecovery(t *testing.T) {
	decoy := []byte("plausible duress cover secret!")
	require.Equal(t, len(testSecret), len(decoy))
	kit := buildKit(t, []setup.DecoySpec{{Secret: decoy, Threshold: 1}})

	t.Run("correct answers still reach the real secret", func(t *testing.T) {
		e := newTestEngine(t, kit)
		for qi := 0; qi < 6; qi++ {
			submit(t, e, kit, qi, 1)
		}
		secret, err := e.Recover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testSecret, secret)
	})

	t.Run("wrong answers reach the decoy", func(t *testing.T) {
		e := newTestEngine(t, kit)
		for qi := 0; qi < 6; qi++ {
			submit(t, e, kit, qi, 0)
		}
		secret, err := e.Recover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, decoy, secret)
		assert.Equal(t, StateRecovered, e.State())
	})
}

func TestRecoverBinarySecrets(t *testing.T) {
	// Secrets ending in NUL bytes must survive the full pipeline; the
	// share library trims trailing NULs on recombination and the frame
	// restoration has to compensate.
	secret := append([]byte("binary secret payload"), 0x00, 0x00)
	decoy := make([]byte, len(secret))
	copy(decoy, "cover story")

	b := setup.NewBuilder(testAdapter(t), rand.NewSource(), setup.Params{
		Cost:    vault.KDFCost{Time: 1, Memory: kdf.AbsoluteMinMemory},
		MinBits: 1,
	})
	kit, err := b.Build(secret, fiveStandardOneCritical(), 3, []setup.DecoySpec{{Secret: decoy, Threshold: 1}})
	require.NoError(t, err)

	t.Run("all correct answers recover the real secret", func(t *testing.T) {
		e := newTestEngine(t, kit)
		for qi := 0; qi < 6; qi++ {
			submit(t, e, kit, qi, 1)
		}
		got, err := e.Recover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})

	t.Run("all wrong answers recover the NUL-padded decoy", func(t *testing.T) {
		e := newTestEngine(t, kit)
		for qi := 0; qi < 6; qi++ {
			submit(t, e, kit, qi, 0)
		}
		got, err := e.Recover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, decoy, got)
	})
}

func TestRepeatedAttemptsAreIdempotent(t *testing.T) {
	kit := buildKit(t, nil)

	tests := []struct {
		name    string
		answers map[int]int
		wantOK  bool
	}{
		{"recovering set", map[int]int{0: 1, 1: 1, 2: 1, 3: 0, 4: 2, 5: 1}, true},
		{"rejecting set", map[int]int{0: 1, 1: 1, 5: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var first []byte
			for run := 0; run < 2; run++ {
				e := newTestEngine(t, kit)
				for qi, ai := range tt.answers {
					submit(t, e, kit, qi, ai)
				}
				secret, err := e.Recover(context.Background())
				if !tt.wantOK {
					require.ErrorIs(t, err, ErrRecoveryFailed)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, testSecret, secret)
				if run == 0 {
					first = secret
				} else {
					assert.Equal(t, first, secret)
				}
			}
		})
	}
}

func TestUnsealTimingUniformAcrossOutcomes(t *testing.T) {
	if testing.Short() {
		t.Skip("timing measurement")
	}
	kit := buildKit(t, nil)

	// Same submission count either way, so both attempts pay the same
	// number of derivations. The minimum of several runs damps
	// scheduler noise.
	measure := func(ai int) time.Duration {
		best := time.Duration(math.MaxInt64)
		for run := 0; run < 3; run++ {
			e := newTestEngine(t, kit)
			for qi := 0; qi < 6; qi++ {
				submit(t, e, kit, qi, ai)
			}
			start := time.Now()
			_, _ = e.Recover(context.Background())
			if d := time.Since(start); d < best {
				best = d
			}
		}
		return best
	}

	correct := measure(1)
	wrong := measure(0)

	ratio := float64(correct) / float64(wrong)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	assert.Less(t, ratio, 3.0,
		"recovered and rejected attempts diverged: correct=%v wrong=%v", correct, wrong)
}

func TestSubmitValidation(t *testing.T) {
	kit := buildKit(t, nil)
	e := newTestEngine(t, kit)
	q := kit.Vault.Questions()[0]

	sub := vault.Submission{QuestionID: q.ID, AlternativeID: q.Alternatives[1].ID}
	require.NoError(t, e.Submit(sub))

	// Same question twice
	assert.ErrorIs(t, e.Submit(vault.Submission{
		QuestionID:    q.ID,
		AlternativeID: q.Alternatives[0].ID,
	}), ErrDuplicateSubmission)

	// Unknown question
	other := kit.Vault.Questions()[1]
	assert.ErrorIs(t, e.Submit(vault.Submission{
		QuestionID:    other.Alternatives[0].ID,
		AlternativeID: other.Alternatives[0].ID,
	}), vault.ErrQuestionNotFound)

	// Alternative from a different question
	assert.ErrorIs(t, e.Submit(vault.Submission{
		QuestionID:    other.ID,
		AlternativeID: q.Alternatives[0].ID,
	}), vault.ErrQuestionNotFound)
}

func TestEngineIsSingleUse(t *testing.T) {
	kit := buildKit(t, nil)
	e := newTestEngine(t, kit)
	for qi := 0; qi < 6; qi++ {
		submit(t, e, kit, qi, 1)
	}

	_, err := e.Recover(context.Background())
	require.NoError(t, err)

	// Terminal states accept nothing further.
	_, err = e.Recover(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	q := kit.Vault.Questions()[0]
	assert.ErrorIs(t, e.Submit(vault.Submission{
		QuestionID:    q.ID,
		AlternativeID: q.Alternatives[0].ID,
	}), ErrInvalidState)
}

func TestRecoverHonorsContext(t *testing.T) {
	kit := buildKit(t, nil)
	e := newTestEngine(t, kit)
	for qi := 0; qi < 6; qi++ {
		submit(t, e, kit, qi, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recover(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateRejected, e.State())
}

func TestSubsetEnumeration(t *testing.T) {
	total, ok := binomialAtMost(5, 3, exhaustiveSubsetLimit)
	require.True(t, ok)
	assert.Equal(t, 10, total)

	subsets := enumerate(5, 3, total)
	require.Len(t, subsets, 10)
	seen := make(map[string]bool)
	for _, s := range subsets {
		require.Len(t, s, 3)
		seen[fingerprint(s)] = true
	}
	assert.Len(t, seen, 10)

	// Above the limit the engine samples instead.
	_, ok = binomialAtMost(40, 3, exhaustiveSubsetLimit)
	assert.False(t, ok)
}

func TestSubsetSampling(t *testing.T) {
	kit := buildKit(t, nil)
	e := newTestEngine(t, kit)

	subsets, err := e.sample(40, 3)
	require.NoError(t, err)
	require.Len(t, subsets, sampledSubsetCount)

	seen := make(map[string]bool)
	for _, s := range subsets {
		require.Len(t, s, 3)
		for i := 1; i < len(s); i++ {
			require.Less(t, s[i-1], s[i])
		}
		seen[fingerprint(s)] = true
	}
	assert.Len(t, seen, sampledSubsetCount)
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateCollecting: "collecting",
		StateUnsealing:  "unsealing",
		StateGating:     "gating",
		StateCombining:  "combining",
		StateRecovered:  "recovered",
		StateRejected:   "rejected",
		State(99):       "unknown",
	}
	for s, want := range states {
		assert.Equal(t, want, s.String())
	}
}
