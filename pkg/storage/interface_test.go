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

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.NotNil(t, opts, "DefaultOptions should not return nil")
	assert.Equal(t, 0600, int(opts.Permissions), "Default permissions should be 0600")
}

func TestDefaultOptions_NotShared(t *testing.T) {
	opts1 := DefaultOptions()
	opts2 := DefaultOptions()

	opts1.Permissions = 0644

	assert.Equal(t, 0600, int(opts2.Permissions), "Options should not be shared between instances")
}
