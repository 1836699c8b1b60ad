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

// Package zeroize provides best-effort clearing of secret material from memory.
//
// Derived keys, candidate shares and reconstructed secrets must not outlive
// the recovery attempt that produced them. Every exit path of the engine
// calls into this package before returning.
package zeroize

import "crypto/subtle"

// Bytes overwrites b with zeros. The write goes through crypto/subtle so the
// compiler cannot elide it as a dead store.
func Bytes(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}

// Slices zeroes every slice in the argument list.
func Slices(slices ...[]byte) {
	for _, s := range slices {
		Bytes(s)
	}
}
