package command

import (
	"fmt"
	"strings"
)

// Encode validates serial and kind and returns the envelope for them. Colours are
// trusted as already validated by ParseColour. Encode has no side effects.
func Encode(serial string, kind Kind) (Envelope, error) {
	if strings.TrimSpace(serial) == "" {
		return Envelope{}, ErrEmptySerial
	}
	if kind == nil {
		return Envelope{}, fmt.Errorf("%w: nil command", ErrUnknownCommandKind)
	}
	if !known(kind) {
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownCommandKind, kind)
	}
	if v, ok := kind.(SetVolume); ok && (v.Level < 0 || v.Level > 100) {
		return Envelope{}, fmt.Errorf("%w: %d", ErrInvalidLevel, v.Level)
	}
	return Envelope{serial: serial, kind: kind}, nil
}

// NewSetVolumeCommand builds a SetVolume envelope.
func NewSetVolumeCommand(serial, channel string, level int) (Envelope, error) {
	return Encode(serial, SetVolume{Channel: channel, Level: level})
}

// NewLoadProfileCommand builds a LoadProfile envelope.
func NewLoadProfileCommand(serial, profile string) (Envelope, error) {
	return Encode(serial, LoadProfile{Profile: profile})
}

// NewSetButtonColoursCommand builds a SetButtonColours envelope.
func NewSetButtonColoursCommand(serial, button string, colours ButtonColourPair) (Envelope, error) {
	return Encode(serial, SetButtonColours{Button: button, Colours: colours})
}

// NewSetSimpleColourCommand builds a SetSimpleColour envelope.
func NewSetSimpleColourCommand(serial, target string, colour Colour) (Envelope, error) {
	return Encode(serial, SetSimpleColour{Target: target, Colour: colour})
}

// NewSetGlobalColourCommand builds a SetGlobalColour envelope.
func NewSetGlobalColourCommand(serial string, colour Colour) (Envelope, error) {
	return Encode(serial, SetGlobalColour{Colour: colour})
}

// NewSetFaderColoursCommand builds a SetFaderColours envelope.
func NewSetFaderColoursCommand(serial, fader string, primary, secondary Colour) (Envelope, error) {
	return Encode(serial, SetFaderColours{Fader: fader, Primary: primary, Secondary: secondary})
}

// NewSetFaderMuteStateCommand builds a SetFaderMuteState envelope.
func NewSetFaderMuteStateCommand(serial, fader, state string) (Envelope, error) {
	return Encode(serial, SetFaderMuteState{Fader: fader, State: state})
}
