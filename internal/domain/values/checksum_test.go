package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		same    []byte
		diff    []byte
	}{
		{
			name:    "identical payloads verify",
			payload: []byte(`{"a":1}`),
			same:    []byte(`{"a":1}`),
			diff:    []byte(`{"a":2}`),
		},
		{
			name:    "single flipped byte fails",
			payload: []byte("crisis data"),
			same:    []byte("crisis data"),
			diff:    []byte("crisis datb"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := ComputeChecksum(tt.payload)

			assert.True(t, sum.Verify(tt.same))
			assert.False(t, sum.Verify(tt.diff))
		})
	}
}

func TestComputeChecksum_EmptyPayload(t *testing.T) {
	// An empty critical extract is legal and must hash deterministically.
	sum := ComputeChecksum(nil)

	assert.True(t, sum.Verify(nil))
	assert.True(t, sum.Verify([]byte{}))
	assert.False(t, sum.Verify([]byte("x")))
	assert.Equal(t, ComputeChecksum([]byte{}), sum)
}

func TestChecksum_Deterministic(t *testing.T) {
	payload := []byte("the same bytes every time")

	first := ComputeChecksum(payload)
	second := ComputeChecksum(payload)

	require.Equal(t, first, second)
	assert.True(t, first.Equal(second))
	assert.Len(t, first.Format(), 64)
}
