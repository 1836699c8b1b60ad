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

// Package recovery reconstructs a kit's secret from submitted answers.
//
// The engine moves through a fixed pipeline: collect submissions, unseal
// every submitted alternative's payloads, gate on the critical-tier
// policy, then attempt Shamir recombination against the final
// authentication catalog. Control flow through unsealing is identical
// for correct and incorrect answers; the engine never learns which
// submissions were right until a combination clears the catalog. A
// failed attempt reports one opaque error carrying no partial results.
package recovery

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/authgate"
	"github.com/jeremyhahn/go-recoverykit/pkg/codec"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/cascade"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-recoverykit/pkg/logging"
	"github.com/jeremyhahn/go-recoverykit/pkg/metrics"
	"github.com/jeremyhahn/go-recoverykit/pkg/threshold/shamir"
	"github.com/jeremyhahn/go-recoverykit/pkg/vault"
)

// State is the engine's position in the recovery pipeline.
type State int

const (
	// StateCollecting accepts submissions
	StateCollecting State = iota

	// StateUnsealing derives keys and opens sealed payloads
	StateUnsealing

	// StateGating checks the critical-tier policy
	StateGating

	// StateCombining attempts Shamir recombination
	StateCombining

	// StateRecovered holds a secret that cleared the authentication gate
	StateRecovered

	// StateRejected is the terminal failure state
	StateRejected
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateUnsealing:
		return "unsealing"
	case StateGating:
		return "gating"
	case StateCombining:
		return "combining"
	case StateRecovered:
		return "recovered"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	// exhaustiveSubsetLimit bounds exhaustive subset enumeration during
	// combining. Above it the engine samples instead.
	exhaustiveSubsetLimit = 5000

	// sampledSubsetCount is how many distinct random subsets are tried
	// when the subset space is too large to enumerate.
	sampledSubsetCount = 200

	// DefaultMemoryBudgetKiB bounds the combined memory of concurrent
	// key derivations. 4 GiB.
	DefaultMemoryBudgetKiB = 4 * 1024 * 1024
)

var (
	// ErrRecoveryFailed is the single error a failed attempt reports.
	// It never says which submissions were wrong, how many shares were
	// usable or how close the attempt came.
	ErrRecoveryFailed = errors.New("recovery: attempt rejected")

	// ErrInvalidState indicates a call that is not legal in the engine's
	// current state
	ErrInvalidState = errors.New("recovery: operation not valid in current state")

	// ErrDuplicateSubmission indicates a second submission for the same
	// question
	ErrDuplicateSubmission = errors.New("recovery: question already answered")
)

// Config carries the engine's collaborators. Zero fields select
// defaults.
type Config struct {
	// KDF derives per-answer keys. Defaults to the production Argon2id
	// adapter with the 1 GiB floor.
	KDF kdf.KDFAdapter

	// RNG is the randomness source for subset sampling. Defaults to the
	// operating system CSPRNG.
	RNG *rand.Source

	// Logger receives state-transition logs. Counts and durations only;
	// never submission content. Defaults to the package default logger.
	Logger *logging.Logger

	// MemoryBudgetKiB bounds the total memory of in-flight derivations.
	// The worker pool size is the budget divided by the kit's Argon2id
	// memory cost, floored at one worker.
	MemoryBudgetKiB uint32
}

// Engine drives one recovery attempt against one kit. An engine is
// single-use: after Recover returns, it stays in its terminal state.
type Engine struct {
	vault   *vault.Vault
	catalog *authgate.Catalog
	kdf     kdf.KDFAdapter
	cascade *cascade.Adapter
	codec   *codec.Codec
	rng     *rand.Source
	logger  *logging.Logger
	budget  uint32

	mu    sync.Mutex
	state State
	subs  []vault.Submission
	seen  map[uuid.UUID]bool
}

// NewEngine creates a recovery engine for the given kit.
func NewEngine(v *vault.Vault, catalog *authgate.Catalog, cfg Config) (*Engine, error) {
	if cfg.KDF == nil {
		cfg.KDF = kdf.NewArgon2idAdapter()
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.NewSource()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger()
	}
	if cfg.MemoryBudgetKiB == 0 {
		cfg.MemoryBudgetKiB = DefaultMemoryBudgetKiB
	}
	c, err := codec.NewForPayloadSize(v.SealedSize() - cascade.Overhead)
	if err != nil {
		return nil, err
	}
	return &Engine{
		vault:   v,
		catalog: catalog,
		kdf:     cfg.KDF,
		cascade: cascade.New(cfg.RNG),
		codec:   c,
		rng:     cfg.RNG,
		logger:  cfg.Logger,
		budget:  cfg.MemoryBudgetKiB,
		state:   StateCollecting,
		seen:    make(map[uuid.UUID]bool),
	}, nil
}

// State returns the engine's current pipeline state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Submit records one answer selection. Submissions are only accepted
// while collecting, and each question may be answered once.
func (e *Engine) Submit(sub vault.Submission) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCollecting {
		return ErrInvalidState
	}
	if e.seen[sub.QuestionID] {
		return ErrDuplicateSubmission
	}
	q, err := e.vault.QuestionByID(sub.QuestionID)
	if err != nil {
		return err
	}
	found := false
	for _, alt := range q.Alternatives {
		if alt.ID == sub.AlternativeID {
			found = true
			break
		}
	}
	if !found {
		return vault.ErrQuestionNotFound
	}
	e.seen[sub.QuestionID] = true
	e.subs = append(e.subs, sub)
	return nil
}

// candidate is one unsealed share, addressed by question index and
// bundle index. A nil share means the payload failed to unseal or
// decode; the hole is carried forward rather than reported.
type candidate struct {
	question int
	shares   [][]byte // per bundle, nil on failure
}

// Recover runs the pipeline to completion and returns the secret, real
// or decoy, that cleared the authentication gate. Every intermediate
// key, payload and share is zeroized before return on all paths. The
// context is honored between derivations and between combination
// attempts; cancellation rejects the attempt.
func (e *Engine) Recover(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	if e.state != StateCollecting {
		e.mu.Unlock()
		return nil, ErrInvalidState
	}
	e.state = StateUnsealing
	subs := append([]vault.Submission(nil), e.subs...)
	e.mu.Unlock()

	start := time.Now()
	secret, err := e.run(ctx, subs)

	e.mu.Lock()
	if err != nil {
		e.state = StateRejected
	} else {
		e.state = StateRecovered
	}
	e.mu.Unlock()

	outcome := metrics.OutcomeRecovered
	if err != nil {
		outcome = metrics.OutcomeRejected
	}
	metrics.RecordRecoveryOutcome(outcome)
	e.logger.Info("recovery attempt finished",
		"outcome", outcome,
		"submissions", len(subs),
		"duration", time.Since(start).String())
	return secret, err
}

func (e *Engine) run(ctx context.Context, subs []vault.Submission) ([]byte, error) {
	candidates, err := e.unseal(ctx, subs)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, c := range candidates {
			zeroize.Slices(c.shares...)
		}
	}()

	e.setState(StateGating)
	bundles := e.gate(candidates)
	if len(bundles) == 0 {
		return nil, ErrRecoveryFailed
	}

	e.setState(StateCombining)
	return e.combine(ctx, candidates, bundles)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.logger.Debug("state transition", "state", s.String())
}

// workers sizes the unsealing pool so concurrent derivations stay
// within the memory budget.
func (e *Engine) workers() int {
	mem := uint32(kdf.DefaultMemoryFloor)
	if qs := e.vault.Questions(); len(qs) > 0 && len(qs[0].Alternatives) > 0 {
		if m := qs[0].Alternatives[0].Cost.Memory; m > 0 {
			mem = m
		}
	}
	n := int(e.budget / mem)
	if n < 1 {
		n = 1
	}
	if cpus := runtime.NumCPU(); n > cpus {
		n = cpus
	}
	return n
}

// unseal derives each submission's key and opens all bundle payloads.
// Every submission takes the same path regardless of whether it holds
// a real, dummy or decoy share; only kit tampering produces holes.
func (e *Engine) unseal(ctx context.Context, subs []vault.Submission) ([]candidate, error) {
	candidates := make([]candidate, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())

	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := e.unsealOne(sub)
			if err != nil {
				return err
			}
			candidates[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range candidates {
			zeroize.Slices(c.shares...)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrRecoveryFailed
	}
	return candidates, nil
}

func (e *Engine) unsealOne(sub vault.Submission) (candidate, error) {
	q, err := e.vault.QuestionByID(sub.QuestionID)
	if err != nil {
		return candidate{}, err
	}
	qi, err := e.vault.QuestionIndex(sub.QuestionID)
	if err != nil {
		return candidate{}, err
	}
	var alt *vault.Alternative
	for i := range q.Alternatives {
		if q.Alternatives[i].ID == sub.AlternativeID {
			alt = &q.Alternatives[i]
			break
		}
	}
	if alt == nil {
		return candidate{}, vault.ErrQuestionNotFound
	}

	key, err := e.kdf.DeriveKey([]byte(vault.Normalize(alt.Text)), &kdf.KDFParams{
		Algorithm: kdf.AlgorithmArgon2id,
		Salt:      alt.Salt,
		Memory:    alt.Cost.Memory,
		Time:      alt.Cost.Time,
		Threads:   1,
		KeyLength: cascade.KeySize,
	})
	if err != nil {
		return candidate{}, err
	}
	defer zeroize.Bytes(key)
	metrics.RecordDerivation()

	aad := vault.AAD(q.Hash, alt.Hash, cascade.AlgorithmAESChaCha, cascade.Version)
	shares := make([][]byte, len(alt.Sealed))
	for bi, blob := range alt.Sealed {
		payload, err := e.cascade.Open(key, blob, aad)
		if err != nil {
			continue
		}
		share, err := e.codec.Decode(payload)
		zeroize.Bytes(payload)
		if err != nil {
			continue
		}
		shares[bi] = share
	}
	return candidate{question: qi, shares: shares}, nil
}

// gate returns the bundle indices whose critical-tier policy is
// satisfied: every critical question answered and its payload for that
// bundle unsealed. Realness of the critical share is not judged here;
// a dummy at a critical position survives gating and then poisons
// every combination.
func (e *Engine) gate(candidates []candidate) []int {
	byQuestion := make(map[int]candidate, len(candidates))
	for _, c := range candidates {
		byQuestion[c.question] = c
	}

	policies := e.policies()
	var open []int
	for bi, pol := range policies {
		ok := true
		for _, ci := range pol.Critical {
			c, answered := byQuestion[ci]
			if !answered || bi >= len(c.shares) || c.shares[bi] == nil {
				ok = false
				break
			}
		}
		if ok {
			open = append(open, bi)
		}
	}
	return open
}

// policies returns all bundle policies, real bundle first.
func (e *Engine) policies() []vault.RecoveryPolicy {
	out := make([]vault.RecoveryPolicy, 0, e.vault.Bundles())
	out = append(out, e.vault.Policy())
	out = append(out, e.vault.DecoyPolicies()...)
	return out
}

// combine attempts recombination bundle by bundle, real bundle first.
// For each bundle it pairs every critical share with subsets of the
// standard shares at the policy threshold, exhaustively when the
// subset space is small and by random sampling otherwise. The first
// combination that clears the authentication gate wins.
func (e *Engine) combine(ctx context.Context, candidates []candidate, bundles []int) ([]byte, error) {
	policies := e.policies()
	for _, bi := range bundles {
		pol := policies[bi]
		critical := make(map[int]bool, len(pol.Critical))
		for _, ci := range pol.Critical {
			critical[ci] = true
		}

		var criticalShares, standardShares [][]byte
		for _, c := range candidates {
			if bi >= len(c.shares) || c.shares[bi] == nil {
				continue
			}
			if critical[c.question] {
				criticalShares = append(criticalShares, c.shares[bi])
			} else {
				standardShares = append(standardShares, c.shares[bi])
			}
		}
		if len(standardShares) < pol.Threshold {
			continue
		}

		secret, err := e.combineBundle(ctx, criticalShares, standardShares, pol.Threshold)
		if err == nil {
			return secret, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, ErrRecoveryFailed
}

func (e *Engine) combineBundle(ctx context.Context, critical, standard [][]byte, threshold int) ([]byte, error) {
	subsets, err := e.subsets(len(standard), threshold)
	if err != nil {
		return nil, ErrRecoveryFailed
	}
	for _, subset := range subsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shares := make([][]byte, 0, len(critical)+threshold)
		shares = append(shares, critical...)
		for _, si := range subset {
			shares = append(shares, standard[si])
		}
		if secret := e.tryShares(shares); secret != nil {
			return secret, nil
		}
	}
	return nil, ErrRecoveryFailed
}

// tryShares runs one combination through recombination, unframing and
// the authentication gate. Any failure returns nil with all
// intermediates zeroized.
func (e *Engine) tryShares(shares [][]byte) []byte {
	framed, err := shamir.Combine(shares)
	if err != nil {
		return nil
	}
	secret, err := shamir.Unframe(framed)
	zeroize.Bytes(framed)
	if err != nil {
		return nil
	}
	if err := e.catalog.Verify(secret); err != nil {
		zeroize.Bytes(secret)
		return nil
	}
	return secret
}

// subsets enumerates threshold-sized index subsets of n standard
// shares. Small spaces are walked exhaustively; large ones are sampled
// without replacement up to sampledSubsetCount.
func (e *Engine) subsets(n, threshold int) ([][]int, error) {
	if threshold > n {
		return nil, ErrRecoveryFailed
	}
	if total, ok := binomialAtMost(n, threshold, exhaustiveSubsetLimit); ok {
		return enumerate(n, threshold, total), nil
	}
	return e.sample(n, threshold)
}

// binomialAtMost reports whether C(n, k) <= limit, returning the value
// when it is.
func binomialAtMost(n, k, limit int) (int, bool) {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
		if c > limit {
			return 0, false
		}
	}
	return c, true
}

// enumerate walks all C(n, k) subsets in lexicographic order.
func enumerate(n, k, total int) [][]int {
	out := make([][]int, 0, total)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, append([]int(nil), idx...))
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// sample draws up to sampledSubsetCount distinct subsets uniformly.
func (e *Engine) sample(n, k int) ([][]int, error) {
	seen := make(map[string]bool, sampledSubsetCount)
	out := make([][]int, 0, sampledSubsetCount)
	// Distinctness is tracked on the sorted index set. The space is
	// far larger than the sample count, so collisions are rare and a
	// bounded retry loop suffices.
	attempts := sampledSubsetCount * 10
	for len(out) < sampledSubsetCount && attempts > 0 {
		attempts--
		subset, err := e.drawSubset(n, k)
		if err != nil {
			return nil, err
		}
		key := fingerprint(subset)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, subset)
	}
	return out, nil
}

// drawSubset picks k of n indices via a partial Fisher-Yates pass.
func (e *Engine) drawSubset(n, k int) ([]int, error) {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j, err := e.rng.Intn(n - i)
		if err != nil {
			return nil, err
		}
		pool[i], pool[i+j] = pool[i+j], pool[i]
	}
	subset := append([]int(nil), pool[:k]...)
	sort.Ints(subset)
	return subset, nil
}

func fingerprint(subset []int) string {
	b := make([]byte, 0, len(subset)*2)
	for _, v := range subset {
		b = append(b, byte(v>>8), byte(v))
	}
	return string(b)
}
