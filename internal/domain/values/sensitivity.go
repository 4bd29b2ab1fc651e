package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// SensitivityLevel tags a payload for the encryption gateway. The gateway
// derives a distinct key per level, so ciphertext produced at one level
// never decrypts at another.
type SensitivityLevel int

const (
	SensitivityStandard SensitivityLevel = iota
	SensitivityHigh
	SensitivityMaximum
)

func (l SensitivityLevel) String() string {
	switch l {
	case SensitivityStandard:
		return "standard"
	case SensitivityHigh:
		return "high"
	case SensitivityMaximum:
		return "maximum"
	default:
		return "unknown"
	}
}

// NewSensitivityLevel parses a sensitivity level from its string form
func NewSensitivityLevel(value string) (SensitivityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standard":
		return SensitivityStandard, nil
	case "high":
		return SensitivityHigh, nil
	case "maximum":
		return SensitivityMaximum, nil
	default:
		return SensitivityStandard, errors.NewValidationError("INVALID_SENSITIVITY",
			fmt.Sprintf("unknown sensitivity level: %s", value))
	}
}

// MarshalJSON implements JSON marshaling
func (l SensitivityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (l *SensitivityLevel) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	level, err := NewSensitivityLevel(raw)
	if err != nil {
		return err
	}

	*l = level
	return nil
}
