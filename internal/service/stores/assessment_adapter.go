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

// assessmentAdapter exposes the assessment live store through the Adapter seam
type assessmentAdapter struct {
	store keyvalue.Store
}

// NewAssessmentAdapter creates the adapter for the assessment store family
func NewAssessmentAdapter(store keyvalue.Store) Adapter {
	return &assessmentAdapter{store: store}
}

func (a *assessmentAdapter) StoreType() values.StoreType {
	return values.StoreTypeAssessment
}

func (a *assessmentAdapter) Extract(ctx context.Context) ([]byte, error) {
	raw, err := a.store.Get(ctx, LiveKey(a.StoreType()))
	if err != nil {
		if keyvalue.IsNotFound(err) {
			return json.Marshal(AssessmentStore{})
		}
		return nil, errors.Wrap(err, "extracting assessment store")
	}
	return []byte(raw), nil
}

func (a *assessmentAdapter) Apply(ctx context.Context, payload []byte) error {
	var parsed AssessmentStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return errors.NewValidationError("INVALID_ASSESSMENT_PAYLOAD",
			"assessment payload does not parse").WithCause(err)
	}

	if err := a.store.Set(ctx, LiveKey(a.StoreType()), string(payload)); err != nil {
		return errors.Wrap(err, "applying assessment store")
	}
	return nil
}

func (a *assessmentAdapter) CriticalFields(payload []byte) ([]byte, error) {
	var parsed AssessmentStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, errors.NewValidationError("INVALID_ASSESSMENT_PAYLOAD",
			"assessment payload does not parse").WithCause(err)
	}

	critical := AssessmentCritical{Answers: make([][]int, 0, len(parsed.Submissions))}
	for _, submission := range parsed.Submissions {
		critical.Answers = append(critical.Answers, submission.Answers)
	}

	return json.Marshal(critical)
}

// SmokeTest re-sums a known answer vector and checks stored submissions
// still score consistently.
func (a *assessmentAdapter) SmokeTest(ctx context.Context) error {
	known := []int{1, 2, 0, 3, 1, 2, 1, 0, 2}
	total, err := crisis.Score(crisis.AssessmentPHQ9, known)
	if err != nil {
		return errors.NewRegressionError("scoring rejected a known answer vector").WithCause(err)
	}
	if total != 12 {
		return errors.NewRegressionError(
			fmt.Sprintf("scoring regressed: known vector summed to %d, want 12", total))
	}

	raw, err := a.Extract(ctx)
	if err != nil {
		return err
	}

	var parsed AssessmentStore
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errors.NewRegressionError("restored assessment store does not parse").WithCause(err)
	}

	for _, submission := range parsed.Submissions {
		got, err := crisis.Score(submission.Type, submission.Answers)
		if err != nil {
			return errors.NewRegressionError("restored submission has an invalid answer vector").WithCause(err)
		}
		if got != submission.Score {
			return errors.NewRegressionError(fmt.Sprintf(
				"restored submission score mismatch: answers sum to %d, stored %d", got, submission.Score))
		}
	}

	return nil
}
