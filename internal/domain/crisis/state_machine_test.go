package crisis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_EscalateMonotonic(t *testing.T) {
	tests := []struct {
		name     string
		start    Level
		to       Level
		accepted bool
	}{
		{name: "none to moderate", start: LevelNone, to: LevelModerate, accepted: true},
		{name: "moderate to severe", start: LevelModerate, to: LevelSevere, accepted: true},
		{name: "severe to emergency", start: LevelSevere, to: LevelEmergency, accepted: true},
		{name: "same level refused", start: LevelSevere, to: LevelSevere, accepted: false},
		{name: "downgrade refused", start: LevelSevere, to: LevelMild, accepted: false},
		{name: "emergency cannot go higher", start: LevelEmergency, to: LevelEmergency, accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine()
			if tt.start != LevelNone {
				require.True(t, m.SetLevel(tt.start, TriggerManual))
			}
			before := len(m.History)

			got := m.Escalate(tt.to, TriggerPHQ9)

			assert.Equal(t, tt.accepted, got)
			if tt.accepted {
				assert.Equal(t, tt.to, m.Level)
				assert.Len(t, m.History, before+1)
			} else {
				// Refused escalation changes nothing.
				assert.Equal(t, tt.start, m.Level)
				assert.Len(t, m.History, before)
			}
		})
	}
}

func TestStateMachine_GrantsFlipTogether(t *testing.T) {
	m := NewStateMachine()

	require.True(t, m.Escalate(LevelModerate, TriggerGAD7))
	assert.Equal(t, AccessGrants{}, m.Grants)

	require.True(t, m.Escalate(LevelSevere, TriggerPHQ9))
	assert.Equal(t, AccessGrants{
		EmergencyBypassActive:     true,
		PaymentRestrictionsLifted: true,
		FullFeatureAccess:         true,
	}, m.Grants)
}

func TestStateMachine_Resolve(t *testing.T) {
	m := NewStateMachine()
	require.True(t, m.Escalate(LevelEmergency, TriggerManual))

	require.True(t, m.Resolve())

	assert.Equal(t, LevelNone, m.Level)
	assert.Equal(t, AccessGrants{}, m.Grants)
	require.Len(t, m.History, 1)
	assert.True(t, m.History[0].Resolved)
	require.NotNil(t, m.History[0].ResolvedAt)

	// Nothing left to resolve.
	assert.False(t, m.Resolve())
}

func TestStateMachine_ResolveThenReescalate(t *testing.T) {
	m := NewStateMachine()
	require.True(t, m.Escalate(LevelSevere, TriggerSuicidalIdeation))
	require.True(t, m.Resolve())

	// After resolution any level is reachable again from none.
	assert.True(t, m.Escalate(LevelMild, TriggerGAD7))
	assert.Equal(t, LevelMild, m.Level)
	assert.Len(t, m.History, 2)
}

func TestStateMachine_ResponseLatency(t *testing.T) {
	mock := &MockClock{CurrentTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	SetClock(mock)
	defer ResetClock()

	triggeredAt := mock.CurrentTime
	mock.Advance(250 * time.Millisecond)

	m := NewStateMachine()
	require.True(t, m.EscalateAt(LevelSevere, TriggerPHQ9, triggeredAt))

	require.Len(t, m.History, 1)
	assert.Equal(t, 250*time.Millisecond, m.History[0].ResponseLatency)
	assert.Equal(t, LevelNone, m.History[0].From)
	assert.Equal(t, LevelSevere, m.History[0].To)
}

func TestStateMachine_SetLevelRefusesNoop(t *testing.T) {
	m := NewStateMachine()

	assert.False(t, m.SetLevel(LevelNone, TriggerManual))
	require.True(t, m.SetLevel(LevelModerate, TriggerGAD7))
	assert.False(t, m.SetLevel(LevelModerate, TriggerGAD7))

	// SetLevel allows downward movement, unlike Escalate.
	assert.True(t, m.SetLevel(LevelMild, TriggerGAD7))
}
