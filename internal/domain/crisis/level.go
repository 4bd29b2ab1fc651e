package crisis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// Level is the ordered severity of a detected crisis state. Ordering is
// structural: escalation compares ordinals, and only Resolve de-escalates.
type Level int

const (
	LevelNone Level = iota
	LevelMild
	LevelModerate
	LevelSevere
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelMild:
		return "mild"
	case LevelModerate:
		return "moderate"
	case LevelSevere:
		return "severe"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Ordinal returns the position of the level in the severity order
func (l Level) Ordinal() int {
	return int(l)
}

// IsValid reports whether the level is one of the defined severities
func (l Level) IsValid() bool {
	return l >= LevelNone && l <= LevelEmergency
}

// GrantsEmergencyAccess reports whether the level lifts access restrictions:
// severe and emergency activate bypass, lift payment restrictions, and open
// full feature access.
func (l Level) GrantsEmergencyAccess() bool {
	return l >= LevelSevere
}

// ParseLevel parses a level from its string form
func ParseLevel(value string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return LevelNone, nil
	case "mild":
		return LevelMild, nil
	case "moderate":
		return LevelModerate, nil
	case "severe":
		return LevelSevere, nil
	case "emergency":
		return LevelEmergency, nil
	default:
		return LevelNone, errors.NewValidationError("INVALID_CRISIS_LEVEL",
			fmt.Sprintf("unknown crisis level: %s", value))
	}
}

// MarshalJSON implements JSON marshaling
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (l *Level) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	level, err := ParseLevel(raw)
	if err != nil {
		return err
	}

	*l = level
	return nil
}
