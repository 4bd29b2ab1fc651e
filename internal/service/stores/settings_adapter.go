package stores

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
)

// settingsAdapter exposes the settings live store through the Adapter seam
type settingsAdapter struct {
	store keyvalue.Store
}

// NewSettingsAdapter creates the adapter for the settings store family
func NewSettingsAdapter(store keyvalue.Store) Adapter {
	return &settingsAdapter{store: store}
}

func (a *settingsAdapter) StoreType() values.StoreType {
	return values.StoreTypeSettings
}

func (a *settingsAdapter) Extract(ctx context.Context) ([]byte, error) {
	raw, err := a.store.Get(ctx, LiveKey(a.StoreType()))
	if err != nil {
		if keyvalue.IsNotFound(err) {
			return json.Marshal(SettingsStore{Preferences: map[string]string{}})
		}
		return nil, errors.Wrap(err, "extracting settings store")
	}
	return []byte(raw), nil
}

func (a *settingsAdapter) Apply(ctx context.Context, payload []byte) error {
	var parsed SettingsStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return errors.NewValidationError("INVALID_SETTINGS_PAYLOAD",
			"settings payload does not parse").WithCause(err)
	}

	if err := a.store.Set(ctx, LiveKey(a.StoreType()), string(payload)); err != nil {
		return errors.Wrap(err, "applying settings store")
	}
	return nil
}

// CriticalFields for settings are the preference keys in sorted order; the
// values are user-tunable and not clinically essential.
func (a *settingsAdapter) CriticalFields(payload []byte) ([]byte, error) {
	var parsed SettingsStore
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, errors.NewValidationError("INVALID_SETTINGS_PAYLOAD",
			"settings payload does not parse").WithCause(err)
	}

	keys := make([]string, 0, len(parsed.Preferences))
	for k := range parsed.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return json.Marshal(keys)
}

func (a *settingsAdapter) SmokeTest(ctx context.Context) error {
	raw, err := a.Extract(ctx)
	if err != nil {
		return err
	}

	var parsed SettingsStore
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errors.NewRegressionError("restored settings store does not parse").WithCause(err)
	}

	return nil
}
