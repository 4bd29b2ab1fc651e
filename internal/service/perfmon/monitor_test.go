package perfmon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMonitor_RecordExecution(t *testing.T) {
	tests := []struct {
		name        string
		executionMs int64
		maxMs       int64
		compliant   bool
	}{
		{name: "inside deadline", executionMs: 80, maxMs: 200, compliant: true},
		{name: "exactly at deadline", executionMs: 200, maxMs: 200, compliant: true},
		{name: "past deadline", executionMs: 250, maxMs: 200, compliant: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(zaptest.NewLogger(t), nil)

			got := m.RecordExecution(context.Background(), "hotline_dial", tt.executionMs, tt.maxMs)

			assert.Equal(t, tt.compliant, got)
			snapshot := m.Snapshot()
			assert.Equal(t, int64(1), snapshot.TotalOperations)
			if tt.compliant {
				assert.Zero(t, snapshot.Violations)
			} else {
				assert.Equal(t, int64(1), snapshot.Violations)
			}
		})
	}
}

func TestMonitor_Aggregation(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t), nil)
	ctx := context.Background()

	m.RecordExecution(ctx, "hotline_dial", 50, 200)
	m.RecordExecution(ctx, "hotline_dial", 250, 200)
	m.RecordExecution(ctx, "safety_plan_display", 10, 200)

	snapshot := m.Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalOperations)
	assert.Equal(t, int64(1), snapshot.Violations)
	assert.Equal(t, int64(310), snapshot.TotalExecutionMs)
	assert.Equal(t, int64(250), snapshot.SlowestMs)
	assert.Equal(t, int64(2), snapshot.ByKind["hotline_dial"])
	assert.Equal(t, int64(1), snapshot.ByKind["safety_plan_display"])
	assert.InDelta(t, 2.0/3.0, m.ComplianceRate(), 1e-9)
	assert.Equal(t, int64(1), m.ViolationCount())
}

func TestMonitor_CheckLatency(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t), nil)

	assert.True(t, m.CheckLatency(context.Background(), "migration_converted_read", 30*time.Millisecond, 50*time.Millisecond))
	assert.False(t, m.CheckLatency(context.Background(), "migration_converted_read", 70*time.Millisecond, 50*time.Millisecond))
	assert.Equal(t, int64(1), m.ViolationCount())
}

func TestMonitor_EmptyComplianceRate(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t), nil)
	assert.Equal(t, 1.0, m.ComplianceRate())
}

func TestMonitor_ConcurrentRecording(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every fifth sample violates.
			executionMs := int64(100)
			if i%5 == 0 {
				executionMs = 300
			}
			m.RecordExecution(ctx, "hotline_dial", executionMs, 200)
		}(i)
	}
	wg.Wait()

	// Snapshot-compute-replace must not lose samples under contention.
	snapshot := m.Snapshot()
	require.Equal(t, int64(50), snapshot.TotalOperations)
	assert.Equal(t, int64(10), snapshot.Violations)
}
