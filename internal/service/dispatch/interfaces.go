package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Service is the emergency operation dispatcher. Operations are mutually
// non-blocking: a bypass-flagged operation executes even while lower
// priority operations sit queued. Dispatched side effects cannot be
// cancelled.
type Service interface {
	// AddOperation registers a bounded-latency emergency action
	AddOperation(ctx context.Context, req *OperationRequest) (uuid.UUID, error)
	// Execute runs a registered operation through the paced queue
	Execute(ctx context.Context, id uuid.UUID) (*Result, error)
	// BypassQueue runs a registered operation immediately, regardless of
	// queue saturation
	BypassQueue(ctx context.Context, id uuid.UUID) (*Result, error)
	// GetOperation returns a registered operation
	GetOperation(ctx context.Context, id uuid.UUID) (*emergency.Operation, error)
}

// SafetyPlanSource resolves the user's active safety plan. Dispatch
// references the plan, it never owns it.
type SafetyPlanSource interface {
	ActivePlan(ctx context.Context) (*emergency.SafetyPlan, error)
}

// OperationRequest declares an emergency action and its deadlines
type OperationRequest struct {
	Kind                      emergency.ActionKind `validate:"required"`
	CrisisLevel               crisis.Level
	BypassesQueue             bool
	MaxExecutionTimeMs        int64 `validate:"gt=0"`
	GuaranteedExecutionTimeMs int64 `validate:"gt=0"`
	// Contact overrides the safety plan's primary contact for
	// personal-contact dials
	Contact *values.PhoneNumber
}

// Result is the outcome of one dispatched operation. FallbackMessage is
// non-empty when the external handoff failed and the action degraded to a
// locally rendered message with the literal number or instructions.
type Result struct {
	OperationID     uuid.UUID                `json:"operation_id"`
	State           emergency.ExecutionState `json:"state"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	SLACompliant    bool                     `json:"sla_compliant"`
	SideEffectURI   string                   `json:"side_effect_uri,omitempty"`
	FallbackMessage string                   `json:"fallback_message,omitempty"`
}
