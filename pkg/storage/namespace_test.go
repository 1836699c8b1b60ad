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
)

func TestKitPath(t *testing.T) {
	if got := KitPath("personal"); got != "kits/personal" {
		t.Errorf("KitPath = %q", got)
	}
}

func TestListKits(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	names, err := ListKits(backend)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("expected no kits, got %v", names)
	}

	for _, name := range []string{"personal", "work"} {
		if err := backend.Put(KitPath(name), []byte("kit"), nil); err != nil {
			t.Fatal(err)
		}
	}
	// A non-kit key is not listed
	if err := backend.Put("other/thing", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}

	names, err = ListKits(backend)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "personal" || names[1] != "work" {
		t.Errorf("unexpected kit names: %v", names)
	}
}
