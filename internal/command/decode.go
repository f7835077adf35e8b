package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type volumeParams struct {
	Channel *string `json:"channel"`
	Level   *int    `json:"level"`
}

type profileParams struct {
	Profile *string `json:"profile"`
}

type buttonParams struct {
	Button    *string `json:"button"`
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
}

type simpleColourParams struct {
	Target *string `json:"target"`
	Colour *string `json:"colour"`
}

type globalColourParams struct {
	Colour *string `json:"colour"`
}

type faderColourParams struct {
	Fader     *string `json:"fader"`
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
}

type muteStateParams struct {
	Fader *string `json:"fader"`
	State *string `json:"state"`
}

// DecodeKind turns a command name and its JSON object parameters into a typed Kind.
// Unknown fields and missing required fields are rejected with ErrInvalidArguments.
func DecodeKind(name string, payload json.RawMessage, policy CasePolicy) (Kind, error) {
	entry, ok := Lookup(Name(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommandKind, name)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}

	switch entry.Name {
	case NameSetVolume:
		var p volumeParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "channel", p.Channel); err != nil {
			return nil, err
		}
		if p.Level == nil {
			return nil, missing(entry.Name, "level")
		}
		return SetVolume{Channel: *p.Channel, Level: *p.Level}, nil

	case NameLoadProfile:
		var p profileParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "profile", p.Profile); err != nil {
			return nil, err
		}
		return LoadProfile{Profile: *p.Profile}, nil

	case NameSetButtonColours:
		var p buttonParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "button", p.Button); err != nil {
			return nil, err
		}
		primary, err := requireColour(entry.Name, "primary", p.Primary, policy)
		if err != nil {
			return nil, err
		}
		if p.Secondary == nil {
			return SetButtonColours{Button: *p.Button, Colours: SingleColour(primary)}, nil
		}
		secondary, err := ParseColourWith(*p.Secondary, policy)
		if err != nil {
			return nil, err
		}
		return SetButtonColours{Button: *p.Button, Colours: DualColour(primary, secondary)}, nil

	case NameSetSimpleColour:
		var p simpleColourParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "target", p.Target); err != nil {
			return nil, err
		}
		colour, err := requireColour(entry.Name, "colour", p.Colour, policy)
		if err != nil {
			return nil, err
		}
		return SetSimpleColour{Target: *p.Target, Colour: colour}, nil

	case NameSetGlobalColour:
		var p globalColourParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		colour, err := requireColour(entry.Name, "colour", p.Colour, policy)
		if err != nil {
			return nil, err
		}
		return SetGlobalColour{Colour: colour}, nil

	case NameSetFaderColours:
		var p faderColourParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "fader", p.Fader); err != nil {
			return nil, err
		}
		primary, err := requireColour(entry.Name, "primary", p.Primary, policy)
		if err != nil {
			return nil, err
		}
		secondary, err := requireColour(entry.Name, "secondary", p.Secondary, policy)
		if err != nil {
			return nil, err
		}
		return SetFaderColours{Fader: *p.Fader, Primary: primary, Secondary: secondary}, nil

	case NameSetFaderMuteState:
		var p muteStateParams
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "fader", p.Fader); err != nil {
			return nil, err
		}
		if err := require(entry.Name, "state", p.State); err != nil {
			return nil, err
		}
		return SetFaderMuteState{Fader: *p.Fader, State: *p.State}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommandKind, name)
}

// KindFromArgs turns a command name and positional string arguments, in catalog
// parameter order, into a typed Kind.
func KindFromArgs(name string, args []string, policy CasePolicy) (Kind, error) {
	entry, ok := Lookup(Name(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommandKind, name)
	}
	minArgs := len(entry.Params)
	maxArgs := minArgs + len(entry.Optional)
	if len(args) < minArgs || len(args) > maxArgs {
		return nil, fmt.Errorf("%w: %s takes %s, got %d argument(s)",
			ErrInvalidArguments, entry.Name, usage(entry), len(args))
	}

	colours := func(raw ...string) ([]Colour, error) {
		out := make([]Colour, 0, len(raw))
		for _, r := range raw {
			c, err := ParseColourWith(r, policy)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}

	switch entry.Name {
	case NameSetVolume:
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: level %q is not an integer", ErrInvalidArguments, args[1])
		}
		return SetVolume{Channel: args[0], Level: level}, nil
	case NameLoadProfile:
		return LoadProfile{Profile: args[0]}, nil
	case NameSetButtonColours:
		cs, err := colours(args[1:]...)
		if err != nil {
			return nil, err
		}
		if len(cs) == 2 {
			return SetButtonColours{Button: args[0], Colours: DualColour(cs[0], cs[1])}, nil
		}
		return SetButtonColours{Button: args[0], Colours: SingleColour(cs[0])}, nil
	case NameSetSimpleColour:
		cs, err := colours(args[1])
		if err != nil {
			return nil, err
		}
		return SetSimpleColour{Target: args[0], Colour: cs[0]}, nil
	case NameSetGlobalColour:
		cs, err := colours(args[0])
		if err != nil {
			return nil, err
		}
		return SetGlobalColour{Colour: cs[0]}, nil
	case NameSetFaderColours:
		cs, err := colours(args[1], args[2])
		if err != nil {
			return nil, err
		}
		return SetFaderColours{Fader: args[0], Primary: cs[0], Secondary: cs[1]}, nil
	case NameSetFaderMuteState:
		return SetFaderMuteState{Fader: args[0], State: args[1]}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommandKind, name)
}

// usage returns a one-line argument synopsis such as "<button> <primary> [secondary]".
func usage(e Entry) string {
	parts := make([]string, 0, len(e.Params)+len(e.Optional))
	for _, p := range e.Params {
		parts = append(parts, "<"+p+">")
	}
	for _, p := range e.Optional {
		parts = append(parts, "["+p+"]")
	}
	return strings.Join(parts, " ")
}

// Usage returns the argument synopsis for the catalog entry.
func (e Entry) Usage() string {
	return usage(e)
}

func decodeStrict(payload json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after parameters", ErrInvalidArguments)
	}
	return nil
}

func missing(name Name, field string) error {
	return fmt.Errorf("%w: %s requires %q", ErrInvalidArguments, name, field)
}

func require(name Name, field string, v *string) error {
	if v == nil {
		return missing(name, field)
	}
	return nil
}

func requireColour(name Name, field string, v *string, policy CasePolicy) (Colour, error) {
	if v == nil {
		return Colour{}, missing(name, field)
	}
	return ParseColourWith(*v, policy)
}
