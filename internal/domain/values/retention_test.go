package values

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetentionWindow(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		wantErr  bool
	}{
		{name: "default window", duration: 3 * time.Hour},
		{name: "minimum window", duration: 15 * time.Minute},
		{name: "maximum window", duration: 7 * 24 * time.Hour},
		{name: "zero", duration: 0, wantErr: true},
		{name: "negative", duration: -time.Hour, wantErr: true},
		{name: "below minimum", duration: 14 * time.Minute, wantErr: true},
		{name: "above maximum", duration: 8 * 24 * time.Hour, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := NewRetentionWindow(tt.duration)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.duration, window.Duration())
		})
	}
}

func TestRetentionWindow_ExpiryBoundary(t *testing.T) {
	window := MustNewRetentionWindow(3 * time.Hour)
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		age     time.Duration
		expired bool
	}{
		{name: "fresh backup", age: time.Minute, expired: false},
		{name: "one second inside the window", age: 3*time.Hour - time.Second, expired: false},
		{name: "aged exactly the window", age: 3 * time.Hour, expired: false},
		{name: "one second past the window", age: 3*time.Hour + time.Second, expired: true},
		{name: "long past the window", age: 24 * time.Hour, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := createdAt.Add(tt.age)
			assert.Equal(t, tt.expired, window.Expired(createdAt, now))
		})
	}
}

func TestRetentionWindow_Remaining(t *testing.T) {
	window := MustNewRetentionWindow(time.Hour)
	createdAt := time.Now()

	assert.Equal(t, 30*time.Minute, window.Remaining(createdAt, createdAt.Add(30*time.Minute)))
	assert.Negative(t, window.Remaining(createdAt, createdAt.Add(2*time.Hour)))
}

func TestRetentionWindow_JSON(t *testing.T) {
	window := MustNewRetentionWindow(3 * time.Hour)

	data, err := window.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"3h0m0s"`, string(data))

	var decoded RetentionWindow
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, window, decoded)

	assert.Error(t, decoded.UnmarshalJSON([]byte(`"5m"`)))
}
