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

package file

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-recoverykit/pkg/storage"
)

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := NewWithFs(afero.NewMemMapFs(), "/kits")
	if err != nil {
		t.Fatal(err)
	}
	return backend
}

func TestPutGet(t *testing.T) {
	backend := newTestBackend(t)

	value := []byte("sealed kit bytes")
	if err := backend.Put("kits/personal", value, nil); err != nil {
		t.Fatal(err)
	}

	got, err := backend.Get("kits/personal")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNotFound(t *testing.T) {
	backend := newTestBackend(t)

	if _, err := backend.Get("missing"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutOverwrite(t *testing.T) {
	backend := newTestBackend(t)

	if err := backend.Put("kit", []byte("v1"), nil); err != nil {
		t.Fatal(err)
	}
	if err := backend.Put("kit", []byte("v2"), nil); err != nil {
		t.Fatal(err)
	}

	got, err := backend.Get("kit")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("expected overwrite to v2, got %q", got)
	}
}

func TestDelete(t *testing.T) {
	backend := newTestBackend(t)

	if err := backend.Put("kit", []byte("data"), nil); err != nil {
		t.Fatal(err)
	}
	if err := backend.Delete("kit"); err != nil {
		t.Fatal(err)
	}
	if _, err := backend.Get("kit"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := backend.Delete("kit"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestList(t *testing.T) {
	backend := newTestBackend(t)

	for _, key := range []string{"kits/a", "kits/b", "catalogs/a"} {
		if err := backend.Put(key, []byte("x"), nil); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := backend.List("kits/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "kits/a" || keys[1] != "kits/b" {
		t.Errorf("unexpected keys: %v", keys)
	}

	all, err := backend.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 keys, got %v", all)
	}
}

func TestExists(t *testing.T) {
	backend := newTestBackend(t)

	exists, err := backend.Exists("kit")
	if err != nil || exists {
		t.Errorf("expected not exists, got %v %v", exists, err)
	}

	if err := backend.Put("kit", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	exists, err = backend.Exists("kit")
	if err != nil || !exists {
		t.Errorf("expected exists, got %v %v", exists, err)
	}
}

func TestKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"simple", "kit", true},
		{"nested", "kits/personal/main", true},
		{"empty", "", false},
		{"null byte", "kit\x00name", false},
		{"absolute", "/etc/passwd", false},
		{"traversal", "../outside", false},
		{"nested traversal", "kits/../../outside", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageKey(tt.key)
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
