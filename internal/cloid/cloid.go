// Package cloid implements the 128-bit client order identifier used to
// correlate outgoing order intents with exchange-reported fills.
package cloid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// CLOID is an opaque 128-bit client order identifier. The zero value is not
// a valid CLOID; always construct one via New or FromHex.
type CLOID [16]byte

// New generates a fresh, cryptographically random CLOID.
func New() CLOID {
	id := uuid.New()
	var c CLOID
	copy(c[:], id[:])
	return c
}

// String renders the CLOID as "0x" followed by 32 lowercase hex digits.
func (c CLOID) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// IsZero reports whether c is the zero-value CLOID (never issued by New).
func (c CLOID) IsZero() bool {
	return c == CLOID{}
}

// FromHex parses a CLOID previously rendered by String. It accepts an
// optional "0x" prefix.
func FromHex(s string) (CLOID, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 32 {
		return CLOID{}, fmt.Errorf("cloid: expected 32 hex digits, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return CLOID{}, fmt.Errorf("cloid: invalid hex: %w", err)
	}
	var c CLOID
	copy(c[:], b)
	return c, nil
}

// MarshalJSON renders the CLOID as a quoted hex string for snapshot emission.
func (c CLOID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON parses a quoted hex string into a CLOID.
func (c *CLOID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("cloid: expected JSON string")
	}
	parsed, err := FromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
