package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func allKinds() []Kind {
	red, green, blue := MustColour("FF0000"), MustColour("00FF00"), MustColour("0000FF")
	return []Kind{
		SetVolume{Channel: "Mic", Level: 80},
		LoadProfile{Profile: "MyProfile"},
		SetButtonColours{Button: "Button1", Colours: SingleColour(red)},
		SetButtonColours{Button: "Button1", Colours: DualColour(red, green)},
		SetSimpleColour{Target: "Global", Colour: blue},
		SetGlobalColour{Colour: blue},
		SetFaderColours{Fader: "A", Primary: red, Secondary: green},
		SetFaderMuteState{Fader: "A", State: "MuteToX"},
	}
}

func TestEncodeWireFormat(t *testing.T) {
	red, green, blue := MustColour("FF0000"), MustColour("00FF00"), MustColour("0000FF")
	tests := []struct {
		name  string
		kind  Kind
		build func() (Envelope, error)
		want  string
	}{
		{"volume", SetVolume{Channel: "Mic", Level: 80},
			func() (Envelope, error) { return NewSetVolumeCommand("SER123", "Mic", 80) },
			`{"Command":["SER123",{"SetVolume":["Mic",80]}]}`},
		{"profile", LoadProfile{Profile: "MyProfile"},
			func() (Envelope, error) { return NewLoadProfileCommand("SER123", "MyProfile") },
			`{"Command":["SER123",{"LoadProfile":["MyProfile",false]}]}`},
		{"button one colour", SetButtonColours{Button: "Button1", Colours: SingleColour(red)},
			func() (Envelope, error) { return NewSetButtonColoursCommand("SER123", "Button1", SingleColour(red)) },
			`{"Command":["SER123",{"SetButtonColours":["Button1","FF0000"]}]}`},
		{"button two colours", SetButtonColours{Button: "Button1", Colours: DualColour(red, green)},
			func() (Envelope, error) {
				return NewSetButtonColoursCommand("SER123", "Button1", DualColour(red, green))
			},
			`{"Command":["SER123",{"SetButtonColours":["Button1","FF0000","00FF00"]}]}`},
		{"simple colour", SetSimpleColour{Target: "Global", Colour: blue},
			func() (Envelope, error) { return NewSetSimpleColourCommand("SER123", "Global", blue) },
			`{"Command":["SER123",{"SetSimpleColour":["Global","0000FF"]}]}`},
		{"global colour", SetGlobalColour{Colour: blue},
			func() (Envelope, error) { return NewSetGlobalColourCommand("SER123", blue) },
			`{"Command":["SER123",{"SetGlobalColour":"0000FF"}]}`},
		{"fader colours", SetFaderColours{Fader: "A", Primary: red, Secondary: green},
			func() (Envelope, error) { return NewSetFaderColoursCommand("SER123", "A", red, green) },
			`{"Command":["SER123",{"SetFaderColours":["A","FF0000","00FF00"]}]}`},
		{"fader mute", SetFaderMuteState{Fader: "A", State: "MuteToX"},
			func() (Envelope, error) { return NewSetFaderMuteStateCommand("SER123", "A", "MuteToX") },
			`{"Command":["SER123",{"SetFaderMuteState":["A","MuteToX"]}]}`},
		{"default colour", SetGlobalColour{},
			func() (Envelope, error) { return NewSetGlobalColourCommand("SER123", Colour{}) },
			`{"Command":["SER123",{"SetGlobalColour":"000000"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encode("SER123", tt.kind)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := json.Marshal(env)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Encode() = %s\nwant       %s", got, tt.want)
			}

			built, err := tt.build()
			if err != nil {
				t.Fatalf("builder error = %v", err)
			}
			if built.String() != tt.want {
				t.Fatalf("builder = %s\nwant      %s", built.String(), tt.want)
			}
			if built.Kind() != tt.kind {
				t.Fatalf("builder Kind() = %#v, want %#v", built.Kind(), tt.kind)
			}
		})
	}
}

func TestEncodeSetVolumeScenario(t *testing.T) {
	env, err := NewSetVolumeCommand("SER123", "Mic", 80)
	if err != nil {
		t.Fatal(err)
	}
	var got, want any
	if err := json.Unmarshal([]byte(env.String()), &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"Command": ["SER123", {"SetVolume": ["Mic", 80]}]}`), &want); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("envelope = %v, want %v", got, want)
	}
	if env.Serial() != "SER123" || env.Name() != NameSetVolume {
		t.Fatalf("envelope accessors = %q %q", env.Serial(), env.Name())
	}
}

// commandBody decodes an envelope and returns the value stored under its command name.
func commandBody(t *testing.T, env Envelope) (string, Name, any) {
	t.Helper()
	var outer struct {
		Command []json.RawMessage `json:"Command"`
	}
	if err := json.Unmarshal([]byte(env.String()), &outer); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(outer.Command) != 2 {
		t.Fatalf("Command has %d elements, want 2", len(outer.Command))
	}
	var serial string
	if err := json.Unmarshal(outer.Command[0], &serial); err != nil {
		t.Fatalf("decode serial: %v", err)
	}
	var body map[Name]any
	if err := json.Unmarshal(outer.Command[1], &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("body has %d keys, want exactly 1", len(body))
	}
	for name, v := range body {
		return serial, name, v
	}
	return "", "", nil
}

func TestEncodeMatchesCatalogShape(t *testing.T) {
	for _, kind := range allKinds() {
		t.Run(string(kind.Name()), func(t *testing.T) {
			env, err := Encode("SER123", kind)
			if err != nil {
				t.Fatal(err)
			}
			serial, name, body := commandBody(t, env)
			if serial != "SER123" || name != kind.Name() {
				t.Fatalf("got serial %q name %q", serial, name)
			}
			entry, ok := Lookup(name)
			if !ok {
				t.Fatalf("%s missing from catalog", name)
			}
			switch entry.Shape {
			case ShapeScalar:
				if _, ok := body.(string); !ok {
					t.Fatalf("%s encoded as %T, want bare string", name, body)
				}
			case ShapeArray:
				arr, ok := body.([]any)
				if !ok {
					t.Fatalf("%s encoded as %T, want array", name, body)
				}
				if len(arr) < entry.MinArity || len(arr) > entry.MaxArity {
					t.Fatalf("%s arity %d outside [%d, %d]", name, len(arr), entry.MinArity, entry.MaxArity)
				}
			}
		})
	}
}

func TestSetButtonColoursArityFollowsPresence(t *testing.T) {
	for _, p := range []string{"000000", "FF0000", "ABCDEF", "FFFFFF"} {
		for _, s := range []string{"000000", "FF0000", "123456", "FFFFFF"} {
			primary, secondary := MustColour(p), MustColour(s)

			env, err := NewSetButtonColoursCommand("SER", "Bleep", SingleColour(primary))
			if err != nil {
				t.Fatal(err)
			}
			_, _, body := commandBody(t, env)
			if n := len(body.([]any)); n != 2 {
				t.Fatalf("single %s: arity %d, want 2", p, n)
			}

			env, err = NewSetButtonColoursCommand("SER", "Bleep", DualColour(primary, secondary))
			if err != nil {
				t.Fatal(err)
			}
			_, _, body = commandBody(t, env)
			arr := body.([]any)
			if len(arr) != 3 {
				t.Fatalf("dual %s/%s: arity %d, want 3", p, s, len(arr))
			}
			if arr[1] != p || arr[2] != s {
				t.Fatalf("dual %s/%s encoded as %v", p, s, arr)
			}
		}
	}
}

func TestSetGlobalColourIsBareString(t *testing.T) {
	for v := 0; v <= 0xFFFFFF; v += 0x10101 {
		raw := fmt.Sprintf("%06X", v)
		env, err := NewSetGlobalColourCommand("SER", MustColour(raw))
		if err != nil {
			t.Fatal(err)
		}
		_, _, body := commandBody(t, env)
		if s, ok := body.(string); !ok || s != raw {
			t.Fatalf("SetGlobalColour(%s) encoded as %#v", raw, body)
		}
	}
}

func TestLoadProfileAlwaysAppendsFalse(t *testing.T) {
	for _, name := range []string{"MyProfile", "", "true", "false", "with spaces", `quote"d`, "ünïcödé"} {
		env, err := NewLoadProfileCommand("SER", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _, body := commandBody(t, env)
		arr := body.([]any)
		if len(arr) != 2 || arr[0] != name || arr[1] != false {
			t.Fatalf("LoadProfile(%q) encoded as %#v", name, arr)
		}
	}
}

func TestEncodeEmptySerial(t *testing.T) {
	for _, serial := range []string{"", " ", "\t\n"} {
		for _, kind := range allKinds() {
			env, err := Encode(serial, kind)
			if !errors.Is(err, ErrEmptySerial) {
				t.Fatalf("Encode(%q, %s) error = %v, want ErrEmptySerial", serial, kind.Name(), err)
			}
			if !env.IsZero() {
				t.Fatalf("Encode(%q, %s) returned a partial envelope", serial, kind.Name())
			}
		}
	}
}

type embeddedVolume struct {
	SetVolume
}

func TestEncodeUnknownKind(t *testing.T) {
	for _, kind := range []Kind{nil, embeddedVolume{SetVolume{Channel: "Mic", Level: 1}}} {
		env, err := Encode("SER", kind)
		if !errors.Is(err, ErrUnknownCommandKind) {
			t.Fatalf("Encode(%T) error = %v, want ErrUnknownCommandKind", kind, err)
		}
		if !env.IsZero() {
			t.Fatalf("Encode(%T) returned a partial envelope", kind)
		}
	}
}

func TestEncodeVolumeRange(t *testing.T) {
	for _, level := range []int{0, 50, 100} {
		if _, err := NewSetVolumeCommand("SER", "Mic", level); err != nil {
			t.Fatalf("level %d error = %v", level, err)
		}
	}
	for _, level := range []int{-1, 101, 255} {
		if _, err := NewSetVolumeCommand("SER", "Mic", level); !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("level %d error = %v, want ErrInvalidLevel", level, err)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	for _, kind := range allKinds() {
		a, err := Encode("SER123", kind)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Encode("SER123", kind)
		if err != nil {
			t.Fatal(err)
		}
		ja, _ := json.Marshal(a)
		jb, _ := json.Marshal(b)
		if !bytes.Equal(ja, jb) {
			t.Fatalf("%s: %s != %s", kind.Name(), ja, jb)
		}
	}
}

func TestEncodeConcurrent(t *testing.T) {
	kinds := allKinds()
	want := make([]string, len(kinds))
	for i, kind := range kinds {
		env, err := Encode("SER123", kind)
		if err != nil {
			t.Fatal(err)
		}
		want[i] = env.String()
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, kind := range kinds {
				env, err := Encode("SER123", kind)
				if err != nil {
					errs <- err
					return
				}
				if env.String() != want[i] {
					errs <- fmt.Errorf("envelope %s, want %s", env, want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestZeroEnvelope(t *testing.T) {
	var env Envelope
	if !env.IsZero() || env.String() != "" || env.Name() != "" {
		t.Fatalf("zero envelope = %q %q", env.String(), env.Name())
	}
}
