package emergency

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Contact is a trusted person reachable during a crisis
type Contact struct {
	Name  string             `json:"name"`
	Phone values.PhoneNumber `json:"phone"`
}

// SafetyPlan is the user's prepared crisis plan. At most one plan is active
// per user; emergency dispatch references it, it never owns it.
type SafetyPlan struct {
	ID               uuid.UUID `json:"id"`
	Active           bool      `json:"active"`
	WarningSigns     []string  `json:"warning_signs,omitempty"`
	CopingStrategies []string  `json:"coping_strategies,omitempty"`
	Contacts         []Contact `json:"contacts,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewSafetyPlan creates an active safety plan
func NewSafetyPlan(warningSigns, copingStrategies []string, contacts []Contact) *SafetyPlan {
	return &SafetyPlan{
		ID:               uuid.New(),
		Active:           true,
		WarningSigns:     warningSigns,
		CopingStrategies: copingStrategies,
		Contacts:         contacts,
		UpdatedAt:        clock.Now(),
	}
}

// PrimaryContact returns the first contact on the plan
func (p *SafetyPlan) PrimaryContact() (Contact, error) {
	if len(p.Contacts) == 0 {
		return Contact{}, errors.NewNotFoundError("safety plan contact")
	}
	return p.Contacts[0], nil
}

// Deactivate retires the plan so another can become active
func (p *SafetyPlan) Deactivate() {
	p.Active = false
	p.UpdatedAt = clock.Now()
}
