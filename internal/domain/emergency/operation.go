package emergency

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// ActionKind is one of the built-in emergency actions. Each kind maps to a
// single external side effect through the telephony/deep-link invoker.
type ActionKind string

const (
	ActionHotlineDial           ActionKind = "hotline_dial"
	ActionEmergencyServicesDial ActionKind = "emergency_services_dial"
	ActionTextLinePrompt        ActionKind = "text_line_prompt"
	ActionPersonalContactDial   ActionKind = "personal_contact_dial"
	ActionSafetyPlanDisplay     ActionKind = "safety_plan_display"
	ActionCopingStrategyDisplay ActionKind = "coping_strategy_display"
)

func (k ActionKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is one of the built-in actions
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionHotlineDial, ActionEmergencyServicesDial, ActionTextLinePrompt,
		ActionPersonalContactDial, ActionSafetyPlanDisplay, ActionCopingStrategyDisplay:
		return true
	default:
		return false
	}
}

// ExecutionState tracks an operation through dispatch.
// Terminal states: completed, failed, bypassed.
type ExecutionState int

const (
	StateQueued ExecutionState = iota
	StateExecuting
	StateCompleted
	StateFailed
	StateBypassed
)

func (s ExecutionState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateBypassed:
		return "bypassed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateBypassed
}

// PerformanceMetrics records how an executed operation performed against
// its declared deadlines. SLACompliant compares against the hard deadline;
// missing it is advisory and never fails the operation.
type PerformanceMetrics struct {
	ExecutionTimeMs int64      `json:"execution_time_ms"`
	SLACompliant    bool       `json:"sla_compliant"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
}

// Operation is a bounded-latency emergency action. Deadlines are declared
// up front: MaxExecutionTimeMs is the hard deadline, GuaranteedExecutionTimeMs
// the target. A bypass-flagged operation executes regardless of queue
// saturation.
type Operation struct {
	ID                        uuid.UUID          `json:"id"`
	Kind                      ActionKind         `json:"kind"`
	CrisisLevel               crisis.Level       `json:"crisis_level"`
	BypassesQueue             bool               `json:"bypasses_queue"`
	MaxExecutionTimeMs        int64              `json:"max_execution_time_ms"`
	GuaranteedExecutionTimeMs int64              `json:"guaranteed_execution_time_ms"`
	State                     ExecutionState     `json:"execution_state"`
	Metrics                   PerformanceMetrics `json:"performance_metrics"`
	CreatedAt                 time.Time          `json:"created_at"`
}

// NewOperation creates a queued emergency operation with validated deadlines
func NewOperation(kind ActionKind, level crisis.Level, bypassesQueue bool, maxMs, guaranteedMs int64) (*Operation, error) {
	if !kind.IsValid() {
		return nil, errors.NewValidationError("INVALID_ACTION_KIND",
			fmt.Sprintf("unknown emergency action: %s", kind))
	}

	if maxMs <= 0 {
		return nil, errors.NewValidationError("INVALID_DEADLINE",
			"max execution time must be positive")
	}

	if guaranteedMs <= 0 || guaranteedMs > maxMs {
		return nil, errors.NewValidationError("INVALID_DEADLINE",
			"guaranteed execution time must be positive and within the hard deadline")
	}

	return &Operation{
		ID:                        uuid.New(),
		Kind:                      kind,
		CrisisLevel:               level,
		BypassesQueue:             bypassesQueue,
		MaxExecutionTimeMs:        maxMs,
		GuaranteedExecutionTimeMs: guaranteedMs,
		State:                     StateQueued,
		CreatedAt:                 clock.Now(),
	}, nil
}

// BeginExecution marks the operation executing. Returns an error from a
// terminal state: dispatched side effects cannot be re-run or undone.
func (o *Operation) BeginExecution() error {
	if o.State.IsTerminal() {
		return errors.NewConflictError(
			fmt.Sprintf("operation %s already %s", o.ID, o.State))
	}
	o.State = StateExecuting
	return nil
}

// Complete records the measured execution time and the SLA verdict. An SLA
// miss leaves the operation completed; compliance is tracked, not enforced.
func (o *Operation) Complete(executionTimeMs int64, bypassed bool) {
	now := clock.Now()
	o.Metrics = PerformanceMetrics{
		ExecutionTimeMs: executionTimeMs,
		SLACompliant:    executionTimeMs <= o.MaxExecutionTimeMs,
		ExecutedAt:      &now,
	}

	if bypassed {
		o.State = StateBypassed
		return
	}
	o.State = StateCompleted
}

// Fail marks the operation failed. Only internal dispatch faults reach
// here; an unreachable external target degrades to a fallback message and
// still completes.
func (o *Operation) Fail(executionTimeMs int64) {
	now := clock.Now()
	o.Metrics = PerformanceMetrics{
		ExecutionTimeMs: executionTimeMs,
		SLACompliant:    executionTimeMs <= o.MaxExecutionTimeMs,
		ExecutedAt:      &now,
	}
	o.State = StateFailed
}
