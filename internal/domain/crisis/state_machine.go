package crisis

import (
	"time"
)

// AccessGrants are the feature grants derived from the current level. All
// three flip together: partial application is never permitted.
type AccessGrants struct {
	EmergencyBypassActive     bool `json:"emergency_bypass_active"`
	PaymentRestrictionsLifted bool `json:"payment_restrictions_lifted"`
	FullFeatureAccess         bool `json:"full_feature_access"`
}

// EscalationRecord is one accepted level change, appended to the history in
// detection order.
type EscalationRecord struct {
	From            Level         `json:"from"`
	To              Level         `json:"to"`
	Trigger         Trigger       `json:"trigger"`
	At              time.Time     `json:"at"`
	ResponseLatency time.Duration `json:"response_latency"`
	Resolved        bool          `json:"resolved"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

// StateMachine tracks the current crisis level, its escalation history, and
// the derived access grants. Every accepted change updates all three
// atomically; escalation is monotonic and Resolve is the sole de-escalation
// path. The machine itself is not goroutine safe: a single writer (the
// crisis service) owns it.
type StateMachine struct {
	Level   Level              `json:"level"`
	History []EscalationRecord `json:"history"`
	Grants  AccessGrants       `json:"grants"`
}

// NewStateMachine returns a machine at level none with no history
func NewStateMachine() *StateMachine {
	return &StateMachine{Level: LevelNone}
}

// SetLevel applies a level change regardless of direction, except that it
// refuses no-ops. Returns whether the change was accepted.
func (m *StateMachine) SetLevel(level Level, trigger Trigger) bool {
	return m.SetLevelAt(level, trigger, clock.Now())
}

// SetLevelAt applies a level change, measuring response latency from the
// moment the trigger was detected.
func (m *StateMachine) SetLevelAt(level Level, trigger Trigger, triggeredAt time.Time) bool {
	if !level.IsValid() || level == m.Level {
		return false
	}

	m.apply(level, trigger, triggeredAt)
	return true
}

// Escalate raises the level monotonically. It returns false, changing
// nothing, whenever the target ordinal does not exceed the current one.
func (m *StateMachine) Escalate(to Level, trigger Trigger) bool {
	return m.EscalateAt(to, trigger, clock.Now())
}

// EscalateAt is Escalate with an explicit trigger detection time
func (m *StateMachine) EscalateAt(to Level, trigger Trigger, triggeredAt time.Time) bool {
	if !to.IsValid() || to.Ordinal() <= m.Level.Ordinal() {
		return false
	}

	m.apply(to, trigger, triggeredAt)
	return true
}

// Resolve de-escalates to none, resets every grant, and stamps the last
// history record resolved. Returns false if there is nothing to resolve.
func (m *StateMachine) Resolve() bool {
	if m.Level == LevelNone {
		return false
	}

	now := clock.Now()
	if n := len(m.History); n > 0 {
		m.History[n-1].Resolved = true
		m.History[n-1].ResolvedAt = &now
	}

	m.Level = LevelNone
	m.Grants = AccessGrants{}
	return true
}

// apply performs the atomic triple update: level, history, grants
func (m *StateMachine) apply(level Level, trigger Trigger, triggeredAt time.Time) {
	now := clock.Now()
	m.History = append(m.History, EscalationRecord{
		From:            m.Level,
		To:              level,
		Trigger:         trigger,
		At:              now,
		ResponseLatency: now.Sub(triggeredAt),
	})

	m.Level = level

	granted := level.GrantsEmergencyAccess()
	m.Grants = AccessGrants{
		EmergencyBypassActive:     granted,
		PaymentRestrictionsLifted: granted,
		FullFeatureAccess:         granted,
	}
}
