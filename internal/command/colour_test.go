package command

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseColourRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "12345", "1234567", "GGGGGG", "#FFFFFF", "FFFFF ", " FFFFF", "0x00FF", "ff0000", "FfFfFf"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := ParseColour(raw); !errors.Is(err, ErrInvalidColour) {
				t.Fatalf("ParseColour(%q) error = %v, want ErrInvalidColour", raw, err)
			}
		})
	}
}

func TestParseColourAcceptsHexRange(t *testing.T) {
	check := func(v int) {
		raw := fmt.Sprintf("%06X", v)
		c, err := ParseColour(raw)
		if err != nil {
			t.Fatalf("ParseColour(%q) error = %v", raw, err)
		}
		if c.String() != raw {
			t.Fatalf("ParseColour(%q).String() = %q", raw, c.String())
		}
	}
	for v := 0; v <= 0xFFFFFF; v += 997 {
		check(v)
	}
	check(0x000000)
	check(0xFFFFFF)

	// every digit in every position
	for pos := 0; pos < 6; pos++ {
		for _, d := range "0123456789ABCDEF" {
			b := []byte("000000")
			b[pos] = byte(d)
			if _, err := ParseColour(string(b)); err != nil {
				t.Fatalf("ParseColour(%q) error = %v", b, err)
			}
		}
	}
}

func TestParseColourCasePolicy(t *testing.T) {
	if _, err := ParseColourWith("00ff7f", CaseStrict); !errors.Is(err, ErrInvalidColour) {
		t.Fatalf("strict lower-case error = %v, want ErrInvalidColour", err)
	}
	c, err := ParseColourWith("00ff7f", CaseFoldUpper)
	if err != nil {
		t.Fatalf("fold lower-case error = %v", err)
	}
	if c.String() != "00FF7F" {
		t.Fatalf("fold lower-case = %q, want 00FF7F", c.String())
	}
	if _, err := ParseColourWith("00fg7f", CaseFoldUpper); !errors.Is(err, ErrInvalidColour) {
		t.Fatalf("fold invalid digit error = %v, want ErrInvalidColour", err)
	}
}

func TestZeroColourIsDefault(t *testing.T) {
	var c Colour
	if c.String() != DefaultColour {
		t.Fatalf("zero Colour = %q, want %q", c.String(), DefaultColour)
	}
	b, err := c.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"000000"` {
		t.Fatalf("zero Colour JSON = %s", b)
	}
	if parsed := MustColour(DefaultColour); parsed != c {
		t.Fatalf("MustColour(%q) = %#v, want the zero Colour", DefaultColour, parsed)
	}
	if folded, _ := ParseColourWith("000000", CaseFoldUpper); folded != c {
		t.Fatalf("folded %q != zero Colour", DefaultColour)
	}
}

func TestParseCasePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    CasePolicy
		wantErr bool
	}{
		{"", CaseStrict, false},
		{"strict", CaseStrict, false},
		{" Upper ", CaseFoldUpper, false},
		{"lower", CaseStrict, true},
	}
	for _, tt := range tests {
		got, err := ParseCasePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseCasePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseCasePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestButtonColourPair(t *testing.T) {
	red := MustColour("FF0000")
	single := SingleColour(red)
	if _, ok := single.Secondary(); ok {
		t.Fatal("SingleColour reports a secondary colour")
	}
	dual := DualColour(red, red)
	s, ok := dual.Secondary()
	if !ok || s != red {
		t.Fatalf("DualColour secondary = %v, %v", s, ok)
	}
}
