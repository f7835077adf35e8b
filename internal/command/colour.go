package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultColour is the value of a zero Colour.
const DefaultColour = "000000"

// CasePolicy decides how ParseColourWith treats lower-case hex digits.
type CasePolicy int

const (
	// CaseStrict rejects lower-case digits.
	CaseStrict CasePolicy = iota
	// CaseFoldUpper accepts lower-case digits and stores them upper-cased.
	CaseFoldUpper
)

// ParseCasePolicy maps a config value ("strict", "upper") to a CasePolicy.
func ParseCasePolicy(s string) (CasePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return CaseStrict, nil
	case "upper":
		return CaseFoldUpper, nil
	default:
		return CaseStrict, fmt.Errorf("unknown colour case policy %q", s)
	}
}

func (p CasePolicy) String() string {
	if p == CaseFoldUpper {
		return "upper"
	}
	return "strict"
}

// Colour is a validated RRGGBB value. The zero Colour is DefaultColour, and
// parsing DefaultColour yields the zero Colour, so == compares wire values.
type Colour struct {
	hex string
}

// ParseColour validates raw under CaseStrict.
func ParseColour(raw string) (Colour, error) {
	return ParseColourWith(raw, CaseStrict)
}

// ParseColourWith validates raw under the given case policy.
func ParseColourWith(raw string, policy CasePolicy) (Colour, error) {
	if len(raw) != 6 {
		return Colour{}, fmt.Errorf("%w: %q must be exactly 6 hex digits", ErrInvalidColour, raw)
	}
	if policy == CaseFoldUpper {
		raw = strings.ToUpper(raw)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return Colour{}, fmt.Errorf("%w: %q has invalid digit %q", ErrInvalidColour, raw, c)
		}
	}
	if raw == DefaultColour {
		return Colour{}, nil
	}
	return Colour{hex: raw}, nil
}

// MustColour is like ParseColour but panics on error. Intended for constants and tests.
func MustColour(raw string) Colour {
	c, err := ParseColour(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the six-digit wire form.
func (c Colour) String() string {
	if c.hex == "" {
		return DefaultColour
	}
	return c.hex
}

// MarshalJSON encodes the colour as a bare JSON string.
func (c Colour) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ButtonColourPair is the colour argument of SetButtonColours. Whether the secondary
// colour was supplied decides the encoded arity, never its value.
type ButtonColourPair struct {
	primary      Colour
	secondary    Colour
	hasSecondary bool
}

// SingleColour builds a pair without a secondary colour; the daemon fills the second slot.
func SingleColour(primary Colour) ButtonColourPair {
	return ButtonColourPair{primary: primary}
}

// DualColour builds a pair with both colours supplied.
func DualColour(primary, secondary Colour) ButtonColourPair {
	return ButtonColourPair{primary: primary, secondary: secondary, hasSecondary: true}
}

// Primary returns the first colour.
func (p ButtonColourPair) Primary() Colour {
	return p.primary
}

// Secondary returns the second colour and whether it was supplied.
func (p ButtonColourPair) Secondary() (Colour, bool) {
	return p.secondary, p.hasSecondary
}
