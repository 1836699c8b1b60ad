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
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// maxNormalizedRunes caps normalized answer length. Longer input is
// truncated, not rejected, so setup and recovery agree byte-for-byte on
// what was typed.
const maxNormalizedRunes = 256

// Normalize canonicalizes answer or question text for hashing and key
// derivation: NFKC form, NUL bytes stripped, length capped. Recovery
// derives keys from exactly this form, so any change here is a breaking
// kit-format change.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = norm.NFKC.String(text)
	runes := []rune(text)
	if len(runes) > maxNormalizedRunes {
		runes = runes[:maxNormalizedRunes]
	}
	return string(runes)
}

// HashText returns the SHA3-256 digest of the normalized text. Used for
// alternative identity binding in AAD.
func HashText(text string) []byte {
	sum := sha3.Sum256([]byte(Normalize(text)))
	return sum[:]
}

// QuestionHash returns a stable SHA3-256 digest over a question's text and
// its sorted alternatives. Reordering alternatives in a stored kit does not
// change the hash; editing any text does, which breaks AAD binding and
// makes every sealed share under the question unopenable.
func QuestionHash(text string, alternatives []string) []byte {
	sorted := make([]string, len(alternatives))
	for i, alt := range alternatives {
		sorted[i] = Normalize(alt)
	}
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(Normalize(text))
	for _, alt := range sorted {
		b.WriteByte('\n')
		b.WriteString(alt)
	}
	sum := sha3.Sum256([]byte(b.String()))
	return sum[:]
}

// AAD builds the associated data binding a sealed share to its question,
// alternative, cascade algorithm and vault version. Tampering with any of
// these in a stored kit causes cascade open failures at recovery time.
func AAD(questionHash, altHash []byte, algorithm byte, version byte) []byte {
	return []byte(fmt.Sprintf("%x|%x|%d|%d", questionHash, altHash, algorithm, version))
}
