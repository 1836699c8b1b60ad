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

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-recoverykit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-recoverykit/pkg/hardness"
	"github.com/jeremyhahn/go-recoverykit/pkg/logging"
	"github.com/jeremyhahn/go-recoverykit/pkg/recovery"
	"github.com/jeremyhahn/go-recoverykit/pkg/storage"
	"github.com/jeremyhahn/go-recoverykit/pkg/storage/file"
)

// Config holds global CLI configuration. Flags override config file
// values, which override environment variables (RECOVERYKIT_ prefix).
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// KitDir is the directory for kit storage
	KitDir string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool

	// KDFMemoryKiB is the Argon2id memory cost used at setup, in KiB.
	// Must clear the production floor unless UnsafeFloorKiB lowers it.
	KDFMemoryKiB uint32

	// KDFTime is the Argon2id time cost used at setup
	KDFTime uint32

	// UnsafeFloorKiB lowers the Argon2id memory floor below production
	// strength. For testing only; kits built this way are weak.
	UnsafeFloorKiB uint32

	// MinHardnessBits is the minimum combinatorial hardness accepted at
	// setup
	MinHardnessBits float64

	// MemoryBudgetKiB bounds concurrent derivation memory at recovery
	MemoryBudgetKiB uint32
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		KitDir:          defaultKitDir(),
		OutputFormat:    "text",
		KDFMemoryKiB:    kdf.DefaultMemoryFloor,
		KDFTime:         kdf.MinArgon2Time,
		MinHardnessBits: hardness.DefaultMinBits,
		MemoryBudgetKiB: recovery.DefaultMemoryBudgetKiB,
	}
}

func defaultKitDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recoverykit"
	}
	return filepath.Join(home, ".recoverykit")
}

// Load merges the config file and environment into fields the user did
// not set by flag.
func (c *Config) Load() error {
	v := viper.New()
	v.SetEnvPrefix("RECOVERYKIT")
	v.AutomaticEnv()

	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".recoverykit")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is only an error when one was named
		// explicitly.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if v.IsSet("kit_dir") && !rootCmd.PersistentFlags().Changed("kit-dir") {
		c.KitDir = v.GetString("kit_dir")
	}
	if v.IsSet("output") && !rootCmd.PersistentFlags().Changed("output") {
		c.OutputFormat = v.GetString("output")
	}
	if v.IsSet("kdf_memory_kib") {
		c.KDFMemoryKiB = v.GetUint32("kdf_memory_kib")
	}
	if v.IsSet("kdf_time") {
		c.KDFTime = v.GetUint32("kdf_time")
	}
	if v.IsSet("unsafe_floor_kib") {
		c.UnsafeFloorKiB = v.GetUint32("unsafe_floor_kib")
	}
	if v.IsSet("min_hardness_bits") {
		c.MinHardnessBits = v.GetFloat64("min_hardness_bits")
	}
	if v.IsSet("memory_budget_kib") {
		c.MemoryBudgetKiB = v.GetUint32("memory_budget_kib")
	}
	return nil
}

// CreateBackend creates the kit storage backend.
func (c *Config) CreateBackend() (storage.Backend, error) {
	backend, err := file.New(c.KitDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create kit storage: %w", err)
	}
	return backend, nil
}

// CreateKDF creates the Argon2id adapter honoring any floor override.
func (c *Config) CreateKDF() (*kdf.Argon2Adapter, error) {
	if c.UnsafeFloorKiB != 0 {
		return kdf.NewArgon2idAdapterWithFloor(c.UnsafeFloorKiB)
	}
	return kdf.NewArgon2idAdapter(), nil
}

// Logger creates a logger honoring the verbose flag.
func (c *Config) Logger() *logging.Logger {
	return logging.NewLogger(c.Verbose)
}
