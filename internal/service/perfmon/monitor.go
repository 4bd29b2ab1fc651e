package perfmon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
)

// Aggregate is the running SLA bookkeeping. It is the sole cross-cutting
// mutable state in the subsystem; every update replaces the whole record so
// concurrently completing operations never lose samples.
type Aggregate struct {
	TotalOperations  int64            `json:"total_operations"`
	Violations       int64            `json:"violations"`
	TotalExecutionMs int64            `json:"total_execution_ms"`
	SlowestMs        int64            `json:"slowest_ms"`
	ByKind           map[string]int64 `json:"by_kind"`
}

// ComplianceRate returns the fraction of operations inside their deadline
func (a Aggregate) ComplianceRate() float64 {
	if a.TotalOperations == 0 {
		return 1.0
	}
	return float64(a.TotalOperations-a.Violations) / float64(a.TotalOperations)
}

// Monitor records operation timings against declared deadlines and flags
// violations. Violations are advisory: they are counted and alerted, never
// raised to callers and never allowed to block further dispatch.
type Monitor struct {
	mu       sync.Mutex
	current  *Aggregate
	logger   *zap.Logger
	registry *metrics.Registry
}

// NewMonitor creates a monitor. The metrics registry is optional.
func NewMonitor(logger *zap.Logger, registry *metrics.Registry) *Monitor {
	return &Monitor{
		current:  &Aggregate{ByKind: map[string]int64{}},
		logger:   logger,
		registry: registry,
	}
}

// RecordExecution folds one timing sample into the aggregate and reports
// whether the sample met its hard deadline.
func (m *Monitor) RecordExecution(ctx context.Context, kind string, executionMs, maxMs int64) bool {
	compliant := executionMs <= maxMs

	m.mu.Lock()
	// Snapshot-compute-replace: fold the sample into a copy, then swap.
	next := m.snapshotLocked()
	next.TotalOperations++
	next.TotalExecutionMs += executionMs
	if executionMs > next.SlowestMs {
		next.SlowestMs = executionMs
	}
	next.ByKind[kind]++
	if !compliant {
		next.Violations++
	}
	m.current = next
	m.mu.Unlock()

	if !compliant {
		m.logger.Warn("sla violation recorded",
			zap.String("kind", kind),
			zap.Int64("execution_ms", executionMs),
			zap.Int64("max_ms", maxMs))
		if m.registry != nil {
			m.registry.RecordSLAViolation(ctx, kind)
		}
	}

	return compliant
}

// CheckLatency verifies a measured duration against an SLA, recording the
// sample either way.
func (m *Monitor) CheckLatency(ctx context.Context, kind string, measured, sla time.Duration) bool {
	return m.RecordExecution(ctx, kind, measured.Milliseconds(), sla.Milliseconds())
}

// ViolationCount returns the global violation counter
func (m *Monitor) ViolationCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Violations
}

// ComplianceRate returns the overall SLA compliance rate
func (m *Monitor) ComplianceRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.ComplianceRate()
}

// Snapshot returns a copy of the current aggregate
func (m *Monitor) Snapshot() Aggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() *Aggregate {
	next := *m.current
	next.ByKind = make(map[string]int64, len(m.current.ByKind))
	for k, v := range m.current.ByKind {
		next.ByKind[k] = v
	}
	return &next
}
