package crisis

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// Trigger identifies what raised a crisis event
type Trigger string

const (
	TriggerPHQ9             Trigger = "phq9_assessment"
	TriggerGAD7             Trigger = "gad7_assessment"
	TriggerSuicidalIdeation Trigger = "suicidal_ideation"
	TriggerManual           Trigger = "manual"
)

func (t Trigger) String() string {
	return string(t)
}

// AssessmentContext carries the clinical context a crisis event was raised
// from, when it originated in an assessment.
type AssessmentContext struct {
	Type             AssessmentType `json:"type"`
	Score            int            `json:"score"`
	SuicidalIdeation bool           `json:"suicidal_ideation"`
}

// Event is a single detected crisis. Severity is fixed at creation from
// (trigger, score); only the intervention list and resolution fields mutate
// afterwards.
type Event struct {
	ID          uuid.UUID `json:"id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Trigger     Trigger   `json:"trigger"`
	Severity    Level     `json:"severity"`

	Assessment *AssessmentContext `json:"assessment,omitempty"`

	InterventionsUsed []string       `json:"interventions_used,omitempty"`
	ResponseTime      *time.Duration `json:"response_time,omitempty"`

	Resolved      bool       `json:"resolved"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Effectiveness *int       `json:"effectiveness,omitempty"`
}

// NewEvent creates a crisis event with severity fixed from the trigger and
// assessment score.
func NewEvent(trigger Trigger, assessment *AssessmentContext) (*Event, error) {
	switch trigger {
	case TriggerPHQ9, TriggerGAD7, TriggerSuicidalIdeation, TriggerManual:
	default:
		return nil, errors.NewValidationError("INVALID_TRIGGER",
			fmt.Sprintf("unknown crisis trigger: %s", trigger))
	}

	score := 0
	if assessment != nil {
		score = assessment.Score
	}

	return &Event{
		ID:          uuid.New(),
		TriggeredAt: clock.Now(),
		Trigger:     trigger,
		Severity:    SeverityFor(trigger, score),
		Assessment:  assessment,
	}, nil
}

// AddIntervention appends an intervention used while the event was open
func (e *Event) AddIntervention(name string) {
	e.InterventionsUsed = append(e.InterventionsUsed, name)
}

// RecordResponseTime stores how long the first response took
func (e *Event) RecordResponseTime(d time.Duration) {
	e.ResponseTime = &d
}

// Resolve closes the event with an effectiveness rating from 1 to 5.
// Resolution is the only mutation besides the intervention list.
func (e *Event) Resolve(effectiveness int) error {
	if e.Resolved {
		return errors.NewConflictError("crisis event already resolved")
	}

	if effectiveness < 1 || effectiveness > 5 {
		return errors.NewValidationError("INVALID_EFFECTIVENESS",
			fmt.Sprintf("effectiveness rating must be 1-5, got %d", effectiveness))
	}

	now := clock.Now()
	e.Resolved = true
	e.ResolvedAt = &now
	e.Effectiveness = &effectiveness
	return nil
}

// IsOpen reports whether the event still awaits resolution
func (e *Event) IsOpen() bool {
	return !e.Resolved
}
