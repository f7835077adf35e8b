package command

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeKind(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		policy  CasePolicy
		want    string
		wantErr error
	}{
		{"SetVolume", `{"channel":"Mic","level":80}`, CaseStrict, `{"Command":["S",{"SetVolume":["Mic",80]}]}`, nil},
		{"SetVolume", `{"channel":"Mic"}`, CaseStrict, "", ErrInvalidArguments},
		{"SetVolume", `{"channel":"Mic","level":8.5}`, CaseStrict, "", ErrInvalidArguments},
		{"SetVolume", `{"channel":"Mic","level":80,"mute":true}`, CaseStrict, "", ErrInvalidArguments},
		{"LoadProfile", `{"profile":"Stream"}`, CaseStrict, `{"Command":["S",{"LoadProfile":["Stream",false]}]}`, nil},
		{"LoadProfile", ``, CaseStrict, "", ErrInvalidArguments},
		{"LoadProfile", "{\"profile\":\"Stream\"}\n", CaseStrict, `{"Command":["S",{"LoadProfile":["Stream",false]}]}`, nil},
		{"LoadProfile", `{"profile":"A"} {"profile":"B"}`, CaseStrict, "", ErrInvalidArguments},
		{"LoadProfile", `{"profile":"A"} garbage`, CaseStrict, "", ErrInvalidArguments},
		{"SetButtonColours", `{"button":"Bleep","primary":"FF0000"}`, CaseStrict, `{"Command":["S",{"SetButtonColours":["Bleep","FF0000"]}]}`, nil},
		{"SetButtonColours", `{"button":"Bleep","primary":"FF0000","secondary":"FF0000"}`, CaseStrict, `{"Command":["S",{"SetButtonColours":["Bleep","FF0000","FF0000"]}]}`, nil},
		{"SetButtonColours", `{"button":"Bleep","primary":"ff0000"}`, CaseStrict, "", ErrInvalidColour},
		{"SetButtonColours", `{"button":"Bleep","primary":"ff0000"}`, CaseFoldUpper, `{"Command":["S",{"SetButtonColours":["Bleep","FF0000"]}]}`, nil},
		{"SetButtonColours", `{"button":"Bleep","primary":"FF0000","secondary":"#00FF00"}`, CaseStrict, "", ErrInvalidColour},
		{"SetSimpleColour", `{"target":"Global","colour":"00FF00"}`, CaseStrict, `{"Command":["S",{"SetSimpleColour":["Global","00FF00"]}]}`, nil},
		{"SetGlobalColour", `{"colour":"0000FF"}`, CaseStrict, `{"Command":["S",{"SetGlobalColour":"0000FF"}]}`, nil},
		{"SetGlobalColour", `{}`, CaseStrict, "", ErrInvalidArguments},
		{"SetFaderColours", `{"fader":"A","primary":"FF0000","secondary":"00FF00"}`, CaseStrict, `{"Command":["S",{"SetFaderColours":["A","FF0000","00FF00"]}]}`, nil},
		{"SetFaderColours", `{"fader":"A","primary":"FF0000"}`, CaseStrict, "", ErrInvalidArguments},
		{"SetFaderMuteState", `{"fader":"A","state":"MuteToAll"}`, CaseStrict, `{"Command":["S",{"SetFaderMuteState":["A","MuteToAll"]}]}`, nil},
		{"SetFaderMuteState", `["A","MuteToAll"]`, CaseStrict, "", ErrInvalidArguments},
		{"SetMicGain", `{}`, CaseStrict, "", ErrUnknownCommandKind},
	}
	for _, tt := range tests {
		t.Run(tt.name+" "+tt.payload, func(t *testing.T) {
			kind, err := DecodeKind(tt.name, json.RawMessage(tt.payload), tt.policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeKind() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeKind() error = %v", err)
			}
			env, err := Encode("S", kind)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if env.String() != tt.want {
				t.Fatalf("got  %s\nwant %s", env, tt.want)
			}
		})
	}
}

func TestKindFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr error
	}{
		{"SetVolume", []string{"Mic", "80"}, `{"Command":["S",{"SetVolume":["Mic",80]}]}`, nil},
		{"SetVolume", []string{"Mic", "loud"}, "", ErrInvalidArguments},
		{"SetVolume", []string{"Mic"}, "", ErrInvalidArguments},
		{"LoadProfile", []string{"Default"}, `{"Command":["S",{"LoadProfile":["Default",false]}]}`, nil},
		{"SetButtonColours", []string{"Bleep", "FF0000"}, `{"Command":["S",{"SetButtonColours":["Bleep","FF0000"]}]}`, nil},
		{"SetButtonColours", []string{"Bleep", "FF0000", "00FF00"}, `{"Command":["S",{"SetButtonColours":["Bleep","FF0000","00FF00"]}]}`, nil},
		{"SetButtonColours", []string{"Bleep", "FF0000", "00FF00", "0000FF"}, "", ErrInvalidArguments},
		{"SetSimpleColour", []string{"Global", "GGGGGG"}, "", ErrInvalidColour},
		{"SetGlobalColour", []string{"0000FF"}, `{"Command":["S",{"SetGlobalColour":"0000FF"}]}`, nil},
		{"SetFaderColours", []string{"B", "FF0000", "00FF00"}, `{"Command":["S",{"SetFaderColours":["B","FF0000","00FF00"]}]}`, nil},
		{"SetFaderMuteState", []string{"B", "MuteToX"}, `{"Command":["S",{"SetFaderMuteState":["B","MuteToX"]}]}`, nil},
		{"Reboot", nil, "", ErrUnknownCommandKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := KindFromArgs(tt.name, tt.args, CaseStrict)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("KindFromArgs(%v) error = %v, want %v", tt.args, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("KindFromArgs(%v) error = %v", tt.args, err)
			}
			env, err := Encode("S", kind)
			if err != nil {
				t.Fatal(err)
			}
			if env.String() != tt.want {
				t.Fatalf("got  %s\nwant %s", env, tt.want)
			}
		})
	}
}

func TestCatalogCoversEveryKind(t *testing.T) {
	entries := Catalog()
	if len(entries) != 7 {
		t.Fatalf("catalog has %d entries, want 7", len(entries))
	}
	seen := make(map[Name]bool)
	for _, e := range entries {
		if seen[e.Name] {
			t.Fatalf("duplicate catalog entry %s", e.Name)
		}
		seen[e.Name] = true
	}
	for _, k := range allKinds() {
		if !seen[k.Name()] {
			t.Fatalf("%s missing from catalog", k.Name())
		}
	}

	entries[0].Params[0] = "mutated"
	if e, _ := Lookup(entries[0].Name); e.Params[0] == "mutated" {
		t.Fatal("Catalog() exposes internal state")
	}

	e, _ := Lookup(NameSetButtonColours)
	if got := e.Usage(); got != "<button> <primary> [secondary]" {
		t.Fatalf("Usage() = %q", got)
	}
}

func TestCode(t *testing.T) {
	_, err := ParseColour("nope")
	if Code(err) != "INVALID_COLOUR" {
		t.Fatalf("Code() = %q", Code(err))
	}
	if Code(errors.New("other")) != "" {
		t.Fatal("Code() of foreign error is not empty")
	}
}
