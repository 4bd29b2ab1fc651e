package values

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// Checksum represents a SHA-256 digest guarding backup payload integrity
type Checksum struct {
	hash string // Hex-encoded SHA-256 hash (64 characters)
}

var (
	// SHA-256 hex regex: exactly 64 hex characters
	sha256HexRegex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// NewChecksum creates a Checksum value object from a hex string with validation
func NewChecksum(hash string) (Checksum, error) {
	if hash == "" {
		return Checksum{}, errors.NewValidationError("EMPTY_CHECKSUM",
			"checksum cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(hash))

	if !sha256HexRegex.MatchString(normalized) {
		return Checksum{}, errors.NewValidationError("INVALID_CHECKSUM_FORMAT",
			"checksum must be a 64-character hexadecimal string (SHA-256)")
	}

	return Checksum{hash: normalized}, nil
}

// ComputeChecksum computes the SHA-256 digest of the given payload.
// An empty payload is legal: an empty critical-field extract still hashes
// to a well-defined digest and must not read as a verification failure.
func ComputeChecksum(data []byte) Checksum {
	sum := sha256.Sum256(data)
	return Checksum{hash: hex.EncodeToString(sum[:])}
}

// MustNewChecksum creates a Checksum and panics on error (for fixtures/tests)
func MustNewChecksum(hash string) Checksum {
	c, err := NewChecksum(hash)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the hex-encoded digest
func (c Checksum) String() string {
	return c.hash
}

// Bytes returns the raw digest bytes
func (c Checksum) Bytes() ([]byte, error) {
	return hex.DecodeString(c.hash)
}

// IsEmpty checks if the checksum is unset
func (c Checksum) IsEmpty() bool {
	return c.hash == ""
}

// Equal checks if two checksums are identical
func (c Checksum) Equal(other Checksum) bool {
	return c.hash == other.hash
}

// Verify reports whether the checksum matches the provided payload
func (c Checksum) Verify(data []byte) bool {
	if c.IsEmpty() {
		return false
	}
	return c.Equal(ComputeChecksum(data))
}

// Truncate returns a shortened digest for display purposes (first 8 characters)
func (c Checksum) Truncate() string {
	if len(c.hash) <= 8 {
		return c.hash
	}
	return c.hash[:8]
}

// Format returns a formatted string for logging/display
func (c Checksum) Format() string {
	if c.IsEmpty() {
		return "<empty>"
	}
	return fmt.Sprintf("sha256:%s", c.Truncate())
}

// MarshalJSON implements JSON marshaling
func (c Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.hash)
}

// UnmarshalJSON implements JSON unmarshaling
func (c *Checksum) UnmarshalJSON(data []byte) error {
	var hash string
	if err := json.Unmarshal(data, &hash); err != nil {
		return err
	}

	checksum, err := NewChecksum(hash)
	if err != nil {
		return err
	}

	*c = checksum
	return nil
}
