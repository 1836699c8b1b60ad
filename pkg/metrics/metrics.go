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

// Package metrics provides Prometheus instrumentation for recovery kit
// operations. Recovery outcomes carry only the terminal state label;
// nothing recorded here distinguishes which answers were wrong, how
// close an attempt came, or whether a recovered secret was the real one
// or a decoy.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all recoverykit metrics
	Namespace = "recoverykit"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelOutcome   = "outcome"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Outcome values. These are the only two terminal states a recovery
	// attempt reports.
	OutcomeRecovered = "recovered"
	OutcomeRejected  = "rejected"

	// Operation names
	OpSetup     = "setup"
	OpRecover   = "recover"
	OpCalibrate = "calibrate"
	OpInspect   = "inspect"
)

var (
	// OperationsTotal tracks the total number of recoverykit operations
	// by type and status. Use RecordOperation to increment this counter.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of recoverykit operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of recoverykit operations in
	// seconds. Buckets stretch to minutes because memory-hard derivation
	// dominates both setup and recovery.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of recoverykit operations in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{LabelOperation},
	)

	// RecoveryAttemptsTotal tracks recovery attempts by terminal outcome.
	RecoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recovery_attempts_total",
			Help:      "Total number of recovery attempts by terminal outcome",
		},
		[]string{LabelOutcome},
	)

	// DerivationsTotal counts per-answer key derivations performed across
	// all recovery and setup runs.
	DerivationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "derivations_total",
			Help:      "Total number of per-answer key derivations performed",
		},
	)

	// DerivationMemoryKiB reports the Argon2id memory cost currently in
	// force. One gauge; every derivation in a kit runs at the same cost.
	DerivationMemoryKiB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "derivation_memory_kib",
			Help:      "Argon2id memory cost in KiB currently in force",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector. Watch this during
	// recovery; the worker pool bounds concurrent derivations so this
	// should stay under the configured memory budget.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	// Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ProcessUptime tracks the process uptime in seconds since startup.
	ProcessUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "process_uptime_seconds",
			Help:      "Process uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a recoverykit operation with its duration and
// status.
//
// Example:
//
//	start := time.Now()
//	kit, err := builder.Build(secret, specs, threshold, decoys)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    RecordOperation(OpSetup, StatusError, duration)
//	} else {
//	    RecordOperation(OpSetup, StatusSuccess, duration)
//	}
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRecoveryOutcome records the terminal state of one recovery
// attempt. Only the two *public* outcomes are accepted; anything else
// is coerced to rejected so a caller bug cannot widen the label set.
func RecordRecoveryOutcome(outcome string) {
	if !enabled.Load() {
		return
	}
	if outcome != OutcomeRecovered {
		outcome = OutcomeRejected
	}
	RecoveryAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordDerivation counts one per-answer key derivation.
func RecordDerivation() {
	if !enabled.Load() {
		return
	}
	DerivationsTotal.Inc()
}

// SetDerivationMemory publishes the Argon2id memory cost in force.
func SetDerivationMemory(kib float64) {
	if !enabled.Load() {
		return
	}
	DerivationMemoryKiB.Set(kib)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
