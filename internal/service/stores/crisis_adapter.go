package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
)

// crisisAdapter exposes the crisis live store through the Adapter seam
type crisisAdapter struct {
	store keyvalue.Store
}

// NewCrisisAdapter creates the adapter for the crisis store family
func NewCrisisAdapter(store keyvalue.Store) Adapter {
	return &crisisAdapter{store: store}
}

func (a *crisisAdapter) StoreType() values.StoreType {
	return values.StoreTypeCrisis
}

func (a *crisisAdapter) Extract(ctx context.Context) ([]byte, error) {
	raw, err := a.store.Get(ctx, LiveKey(a.StoreType()))
	if err != nil {
		if keyvalue.IsNotFound(err) {
			// A store that has never been written extracts as empty.
			empty := CrisisStore{State: crisis.NewStateMachine()}
			return json.Marshal(empty)
		}
		return nil, errors.Wrap(err, "extracting crisis store")
	}
	return []byte(raw), nil
}

func (a *crisisAdapter) Apply(ctx context.Context, payload []byte) error {
	var parsed CrisisStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return errors.NewValidationError("INVALID_CRISIS_PAYLOAD",
			"crisis payload does not parse").WithCause(err)
	}

	if err := a.store.Set(ctx, LiveKey(a.StoreType()), string(payload)); err != nil {
		return errors.Wrap(err, "applying crisis store")
	}
	return nil
}

func (a *crisisAdapter) CriticalFields(payload []byte) ([]byte, error) {
	var parsed CrisisStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, errors.NewValidationError("INVALID_CRISIS_PAYLOAD",
			"crisis payload does not parse").WithCause(err)
	}

	return json.Marshal(CrisisCritical{EmergencyContacts: parsed.EmergencyContacts})
}

// SmokeTest re-runs the severity mapping and crisis threshold against known
// inputs: a restore that breaks either has regressed the critical path.
func (a *crisisAdapter) SmokeTest(ctx context.Context) error {
	if got := crisis.SeverityForScore(crisis.AssessmentPHQ9, 22); got != crisis.LevelSevere {
		return errors.NewRegressionError(
			fmt.Sprintf("severity mapping regressed: PHQ-9 score 22 yielded %s, want severe", got))
	}

	if !crisis.CrisisRequired(crisis.AssessmentPHQ9, crisis.PHQ9CrisisThreshold) {
		return errors.NewRegressionError("crisis threshold regressed: PHQ-9 score 20 must require crisis")
	}

	raw, err := a.Extract(ctx)
	if err != nil {
		return err
	}

	var parsed CrisisStore
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errors.NewRegressionError("restored crisis store does not parse").WithCause(err)
	}

	return nil
}
