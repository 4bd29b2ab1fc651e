package stores

import (
	"context"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// Adapter is the narrow seam between a live store and the safety machinery.
// Backup, restore, and migration depend only on this interface, never on a
// store's internals, which keeps the store and its orchestrator from
// depending on each other.
type Adapter interface {
	// StoreType identifies the store family
	StoreType() values.StoreType
	// Extract serializes the live store into a payload
	Extract(ctx context.Context) ([]byte, error)
	// Apply replaces the live store with the payload
	Apply(ctx context.Context, payload []byte) error
	// CriticalFields canonicalizes the clinically essential subset of a
	// payload for the fast integrity checksum. An empty extract is valid.
	CriticalFields(payload []byte) ([]byte, error)
	// SmokeTest confirms the store's critical functions still behave
	// after a restore or migration
	SmokeTest(ctx context.Context) error
}

// LiveKey returns the persisted key holding a family's live store
func LiveKey(storeType values.StoreType) string {
	return "store_" + storeType.String()
}

// CrisisStore is the persisted crisis-store payload
type CrisisStore struct {
	State             *crisis.StateMachine  `json:"state"`
	Events            []*crisis.Event       `json:"events"`
	EmergencyContacts []emergency.Contact   `json:"emergency_contacts"`
	SafetyPlan        *emergency.SafetyPlan `json:"safety_plan,omitempty"`
}

// CriticalFields of the crisis store are the emergency contacts: losing a
// phone number during a migration is the failure the sub-checksum exists
// to catch.
type CrisisCritical struct {
	EmergencyContacts []emergency.Contact `json:"emergency_contacts"`
}

// AssessmentSubmission is one completed screening
type AssessmentSubmission struct {
	Type    crisis.AssessmentType `json:"type"`
	Answers []int                 `json:"answers"`
	Score   int                   `json:"score"`
	TakenAt string                `json:"taken_at"`
}

// AssessmentStore is the persisted assessment-store payload
type AssessmentStore struct {
	Submissions []AssessmentSubmission `json:"submissions"`
}

// AssessmentCritical holds the raw answer arrays: scores can be recomputed,
// answers cannot.
type AssessmentCritical struct {
	Answers [][]int `json:"answers"`
}

// SettingsStore is the persisted settings-store payload
type SettingsStore struct {
	Preferences map[string]string `json:"preferences"`
}
