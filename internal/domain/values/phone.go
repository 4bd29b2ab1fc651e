package values

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PhoneNumber represents a validated dialable number. Besides E.164
// subscriber numbers it accepts short emergency codes (988, 911, 741741),
// which are valid dial targets for crisis actions.
type PhoneNumber struct {
	number string
}

var (
	// E.164 format regex: + followed by up to 15 digits
	e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

	// US phone number regex for parsing various formats
	usPhoneRegex = regexp.MustCompile(`^(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})$`)

	// Short emergency/crisis codes: 3 to 6 digits
	shortCodeRegex = regexp.MustCompile(`^[1-9][0-9]{2,5}$`)
)

// NewPhoneNumber creates a new PhoneNumber value object with validation
func NewPhoneNumber(number string) (PhoneNumber, error) {
	if number == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhoneNumber(number)

	if e164Regex.MatchString(cleaned) {
		return PhoneNumber{number: cleaned}, nil
	}

	if shortCodeRegex.MatchString(cleaned) {
		return PhoneNumber{number: cleaned}, nil
	}

	if m := usPhoneRegex.FindStringSubmatch(number); m != nil {
		return PhoneNumber{number: "+1" + m[1] + m[2] + m[3]}, nil
	}

	return PhoneNumber{}, fmt.Errorf("invalid phone number format: %s", number)
}

// MustNewPhoneNumber creates a PhoneNumber and panics on error (for fixtures)
func MustNewPhoneNumber(number string) PhoneNumber {
	p, err := NewPhoneNumber(number)
	if err != nil {
		panic(err)
	}
	return p
}

// cleanPhoneNumber strips separators while keeping a leading +
func cleanPhoneNumber(number string) string {
	var b strings.Builder
	for i, r := range number {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// String returns the normalized number
func (p PhoneNumber) String() string {
	return p.number
}

// IsEmpty checks whether the number is unset
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

// IsShortCode reports whether the number is a short dial code such as 988
func (p PhoneNumber) IsShortCode() bool {
	return shortCodeRegex.MatchString(p.number)
}

// Equal checks if two phone numbers are identical after normalization
func (p PhoneNumber) Equal(other PhoneNumber) bool {
	return p.number == other.number
}

// DialURI returns the tel: deep link for this number
func (p PhoneNumber) DialURI() string {
	return "tel:" + p.number
}

// SMSURI returns the sms: deep link for this number
func (p PhoneNumber) SMSURI() string {
	return "sms:" + p.number
}

// MarshalJSON implements JSON marshaling
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.number)
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == "" {
		*p = PhoneNumber{}
		return nil
	}

	phone, err := NewPhoneNumber(raw)
	if err != nil {
		return err
	}

	*p = phone
	return nil
}
