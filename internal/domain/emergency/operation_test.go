package emergency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name         string
		kind         ActionKind
		maxMs        int64
		guaranteedMs int64
		wantErr      bool
	}{
		{name: "valid hotline dial", kind: ActionHotlineDial, maxMs: 200, guaranteedMs: 100},
		{name: "guaranteed equals max", kind: ActionSafetyPlanDisplay, maxMs: 200, guaranteedMs: 200},
		{name: "unknown kind", kind: ActionKind("page_therapist"), maxMs: 200, guaranteedMs: 100, wantErr: true},
		{name: "zero max", kind: ActionHotlineDial, maxMs: 0, guaranteedMs: 100, wantErr: true},
		{name: "zero guaranteed", kind: ActionHotlineDial, maxMs: 200, guaranteedMs: 0, wantErr: true},
		{name: "guaranteed above max", kind: ActionHotlineDial, maxMs: 100, guaranteedMs: 200, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := NewOperation(tt.kind, crisis.LevelSevere, true, tt.maxMs, tt.guaranteedMs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateQueued, op.State)
			assert.True(t, op.BypassesQueue)
		})
	}
}

func TestOperation_CompleteSLAVerdict(t *testing.T) {
	tests := []struct {
		name        string
		executionMs int64
		compliant   bool
	}{
		{name: "well inside deadline", executionMs: 50, compliant: true},
		{name: "exactly at deadline", executionMs: 200, compliant: true},
		{name: "one past deadline", executionMs: 201, compliant: false},
		{name: "far past deadline", executionMs: 250, compliant: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := NewOperation(ActionHotlineDial, crisis.LevelEmergency, false, 200, 100)
			require.NoError(t, err)
			require.NoError(t, op.BeginExecution())

			op.Complete(tt.executionMs, false)

			// An SLA miss is recorded, never turned into a failure.
			assert.Equal(t, StateCompleted, op.State)
			assert.Equal(t, tt.compliant, op.Metrics.SLACompliant)
			assert.Equal(t, tt.executionMs, op.Metrics.ExecutionTimeMs)
			require.NotNil(t, op.Metrics.ExecutedAt)
		})
	}
}

func TestOperation_CompleteBypassed(t *testing.T) {
	op, err := NewOperation(ActionSafetyPlanDisplay, crisis.LevelSevere, true, 200, 100)
	require.NoError(t, err)
	require.NoError(t, op.BeginExecution())

	op.Complete(30, true)

	assert.Equal(t, StateBypassed, op.State)
	assert.True(t, op.State.IsTerminal())
}

func TestOperation_TerminalStatesRefuseExecution(t *testing.T) {
	op, err := NewOperation(ActionHotlineDial, crisis.LevelEmergency, false, 200, 100)
	require.NoError(t, err)
	require.NoError(t, op.BeginExecution())
	op.Complete(10, false)

	// Side effects cannot be re-run.
	assert.Error(t, op.BeginExecution())

	failed, err := NewOperation(ActionHotlineDial, crisis.LevelEmergency, false, 200, 100)
	require.NoError(t, err)
	require.NoError(t, failed.BeginExecution())
	failed.Fail(15)
	assert.Equal(t, StateFailed, failed.State)
	assert.Error(t, failed.BeginExecution())
}

func TestSafetyPlan_PrimaryContact(t *testing.T) {
	plan := NewSafetyPlan(nil, nil, nil)
	_, err := plan.PrimaryContact()
	assert.Error(t, err)

	plan = NewSafetyPlan([]string{"isolation"}, []string{"breathing"}, []Contact{
		{Name: "Jordan"},
		{Name: "Sam"},
	})
	primary, err := plan.PrimaryContact()
	require.NoError(t, err)
	assert.Equal(t, "Jordan", primary.Name)
	assert.True(t, plan.Active)

	plan.Deactivate()
	assert.False(t, plan.Active)
}
