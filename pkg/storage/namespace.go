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
	"strings"
)

// KitPath returns the storage path for a kit with the given name.
// The path follows the convention: kits/{name}
func KitPath(name string) string {
	return "kits/" + name
}

// ListKits retrieves all kit names from the backend by listing keys
// under the "kits/" prefix.
// Returns an empty slice if no kits exist.
func ListKits(backend Backend) ([]string, error) {
	keys, err := backend.List("kits/")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, "kits/"))
	}
	return names, nil
}
