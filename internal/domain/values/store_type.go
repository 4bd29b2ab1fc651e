package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// StoreType identifies a persisted store family eligible for backup,
// restore, and migration. Each family has its own sensitivity level and
// retention window, and is only ever mutated by a single writer at a time.
type StoreType string

const (
	StoreTypeCrisis     StoreType = "crisis"
	StoreTypeAssessment StoreType = "assessment"
	StoreTypeSettings   StoreType = "settings"
)

// AllStoreTypes returns every known store family in a stable order
func AllStoreTypes() []StoreType {
	return []StoreType{StoreTypeCrisis, StoreTypeAssessment, StoreTypeSettings}
}

// NewStoreType parses and validates a store type string
func NewStoreType(value string) (StoreType, error) {
	normalized := StoreType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StoreTypeCrisis, StoreTypeAssessment, StoreTypeSettings:
		return normalized, nil
	default:
		return "", errors.NewValidationError("INVALID_STORE_TYPE",
			fmt.Sprintf("unknown store type: %s", value))
	}
}

func (s StoreType) String() string {
	return string(s)
}

// Sensitivity returns the encryption sensitivity appropriate to the family.
// Clinically scored data is always encrypted at the maximum level.
func (s StoreType) Sensitivity() SensitivityLevel {
	switch s {
	case StoreTypeCrisis, StoreTypeAssessment:
		return SensitivityMaximum
	default:
		return SensitivityStandard
	}
}

// ClinicallyScored reports whether the family carries clinically scored
// data, which holds migrations to the 100% critical-test gate.
func (s StoreType) ClinicallyScored() bool {
	return s == StoreTypeCrisis || s == StoreTypeAssessment
}

// BackupKey returns the persisted key for a backup of this family
func (s StoreType) BackupKey(backupID string) string {
	return fmt.Sprintf("%s_backup_%s", s, backupID)
}

// BackupKeyPrefix returns the key prefix covering all backups of this family
func (s StoreType) BackupKeyPrefix() string {
	return fmt.Sprintf("%s_backup_", s)
}

// MarshalJSON implements JSON marshaling
func (s StoreType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (s *StoreType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	storeType, err := NewStoreType(raw)
	if err != nil {
		return err
	}

	*s = storeType
	return nil
}
