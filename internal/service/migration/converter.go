package migration

import (
	"context"
	"encoding/json"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// SchemaConverter transforms a store payload from the source schema into the
// target schema. Implementations must be pure with respect to the live
// store: they see bytes in, bytes out, and never touch persistence.
type SchemaConverter interface {
	// FromPattern names the schema being migrated away from
	FromPattern() string
	// ToPattern names the schema being migrated to
	ToPattern() string
	// Convert rewrites the payload into the target schema
	Convert(ctx context.Context, storeType values.StoreType, payload []byte) ([]byte, error)
}

// canonicalConverter migrates loosely structured legacy payloads into the
// unified store schema by parsing them through the family's typed form and
// re-marshaling. Unknown keys are dropped, field names are normalized, and
// a payload that does not parse fails the migration before anything is
// applied.
type canonicalConverter struct{}

// NewCanonicalConverter returns the legacy-to-unified schema converter
func NewCanonicalConverter() SchemaConverter {
	return canonicalConverter{}
}

func (canonicalConverter) FromPattern() string { return "legacy_v1" }
func (canonicalConverter) ToPattern() string   { return "unified_v2" }

func (canonicalConverter) Convert(ctx context.Context, storeType values.StoreType, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch storeType {
	case values.StoreTypeCrisis:
		var parsed stores.CrisisStore
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return nil, errors.NewValidationError("UNCONVERTIBLE_PAYLOAD",
				"crisis payload does not parse as the unified schema").WithCause(err)
		}
		return json.Marshal(parsed)

	case values.StoreTypeAssessment:
		var parsed stores.AssessmentStore
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return nil, errors.NewValidationError("UNCONVERTIBLE_PAYLOAD",
				"assessment payload does not parse as the unified schema").WithCause(err)
		}
		return json.Marshal(parsed)

	case values.StoreTypeSettings:
		var parsed stores.SettingsStore
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return nil, errors.NewValidationError("UNCONVERTIBLE_PAYLOAD",
				"settings payload does not parse as the unified schema").WithCause(err)
		}
		if parsed.Preferences == nil {
			parsed.Preferences = map[string]string{}
		}
		return json.Marshal(parsed)

	default:
		return nil, errors.NewValidationError("UNKNOWN_STORE_TYPE",
			"no conversion defined for store type "+storeType.String())
	}
}
