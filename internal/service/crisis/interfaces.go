package crisis

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/service/dispatch"
)

// Service owns the crisis state machine and the event log. It is the single
// writer for both; every accepted change is persisted as one snapshot.
type Service interface {
	// DetectCrisis scores a completed assessment and, when the clinical
	// thresholds demand it, raises a crisis event and escalates.
	DetectCrisis(ctx context.Context, assessmentType crisis.AssessmentType, answers []int) (*DetectionResult, error)

	// DetectSuicidalIdeation evaluates a PHQ-9 answer vector for the
	// ideation answer alone. Any non-zero answer raises a severe crisis
	// regardless of the total score.
	DetectSuicidalIdeation(ctx context.Context, answers []int) (*DetectionResult, error)

	// TriggerManualCrisis raises an emergency-level crisis from an
	// explicit user action
	TriggerManualCrisis(ctx context.Context) (*DetectionResult, error)

	// ResolveCrisis closes an open event with an effectiveness rating and
	// de-escalates the state machine
	ResolveCrisis(ctx context.Context, eventID uuid.UUID, effectiveness int) error

	// CallHotline dispatches an immediate hotline dial, bypassing the queue
	CallHotline(ctx context.Context) (*dispatch.Result, error)

	// CurrentState returns a copy of the state machine
	CurrentState(ctx context.Context) (crisis.StateMachine, error)

	// GetEvent returns a crisis event by ID
	GetEvent(ctx context.Context, eventID uuid.UUID) (*crisis.Event, error)

	// UpdateSafetyPlan replaces the active safety plan
	UpdateSafetyPlan(ctx context.Context, plan *emergency.SafetyPlan) error

	// SetEmergencyContacts replaces the stored emergency contacts
	SetEmergencyContacts(ctx context.Context, contacts []emergency.Contact) error

	// ActivePlan implements dispatch.SafetyPlanSource
	ActivePlan(ctx context.Context) (*emergency.SafetyPlan, error)

	// AttachDispatcher binds the emergency dispatcher after construction.
	// The dispatcher needs this service as its safety plan source, so the
	// two are wired in two phases.
	AttachDispatcher(d dispatch.Service)
}

// DetectionResult reports what a detection call decided
type DetectionResult struct {
	CrisisDetected bool             `json:"crisis_detected"`
	EventID        *uuid.UUID       `json:"event_id,omitempty"`
	Trigger        crisis.Trigger   `json:"trigger,omitempty"`
	Score          int              `json:"score"`
	Severity       crisis.Level     `json:"severity"`
	CurrentLevel   crisis.Level     `json:"current_level"`
	Escalated      bool             `json:"escalated"`
	Dispatch       *dispatch.Result `json:"dispatch,omitempty"`
}
