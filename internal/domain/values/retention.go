package values

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// RetentionWindow bounds the age a backup may reach while remaining
// eligible for restore. Expiry is a single inequality so the boundary is
// deterministic: a backup aged exactly the window still restores, one
// second past it does not.
type RetentionWindow struct {
	duration time.Duration
}

const (
	// DefaultRetention is the rollback horizon for every store family
	// unless configured otherwise.
	DefaultRetention = 3 * time.Hour

	MinRetention = 15 * time.Minute
	MaxRetention = 7 * 24 * time.Hour
)

// NewRetentionWindow creates a RetentionWindow value object with validation
func NewRetentionWindow(duration time.Duration) (RetentionWindow, error) {
	if duration <= 0 {
		return RetentionWindow{}, errors.NewValidationError("INVALID_RETENTION_DURATION",
			"retention window must be positive")
	}

	if duration < MinRetention {
		return RetentionWindow{}, errors.NewValidationError("RETENTION_TOO_SHORT",
			fmt.Sprintf("retention window must be at least %s", MinRetention))
	}

	if duration > MaxRetention {
		return RetentionWindow{}, errors.NewValidationError("RETENTION_TOO_LONG",
			fmt.Sprintf("retention window cannot exceed %s", MaxRetention))
	}

	return RetentionWindow{duration: duration}, nil
}

// MustNewRetentionWindow creates a RetentionWindow and panics on error
func MustNewRetentionWindow(duration time.Duration) RetentionWindow {
	w, err := NewRetentionWindow(duration)
	if err != nil {
		panic(err)
	}
	return w
}

// DefaultRetentionWindow returns the standard rollback horizon
func DefaultRetentionWindow() RetentionWindow {
	return RetentionWindow{duration: DefaultRetention}
}

// Duration returns the underlying duration
func (w RetentionWindow) Duration() time.Duration {
	return w.duration
}

// IsZero checks whether the window is unset
func (w RetentionWindow) IsZero() bool {
	return w.duration == 0
}

// Expired reports whether a record created at createdAt has aged past the
// window as of now.
func (w RetentionWindow) Expired(createdAt, now time.Time) bool {
	return now.Sub(createdAt) > w.duration
}

// Remaining returns how much restore eligibility is left; negative once expired
func (w RetentionWindow) Remaining(createdAt, now time.Time) time.Duration {
	return w.duration - now.Sub(createdAt)
}

func (w RetentionWindow) String() string {
	return w.duration.String()
}

// MarshalJSON implements JSON marshaling as a duration string
func (w RetentionWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.duration.String())
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (w *RetentionWindow) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	duration, err := time.ParseDuration(raw)
	if err != nil {
		return errors.NewValidationError("INVALID_RETENTION_FORMAT",
			fmt.Sprintf("cannot parse retention window: %s", raw))
	}

	window, err := NewRetentionWindow(duration)
	if err != nil {
		return err
	}

	*w = window
	return nil
}
