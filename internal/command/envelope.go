package command

import "encoding/json"

// Envelope addresses exactly one command to one device. It is immutable once built
// by Encode and safe to share between goroutines.
type Envelope struct {
	serial string
	kind   Kind
}

// Serial returns the addressed device serial.
func (e Envelope) Serial() string {
	return e.serial
}

// Kind returns the encoded command.
func (e Envelope) Kind() Kind {
	return e.kind
}

// Name returns the command's wire token.
func (e Envelope) Name() Name {
	if e.kind == nil {
		return ""
	}
	return e.kind.Name()
}

// IsZero reports whether e was not produced by Encode.
func (e Envelope) IsZero() bool {
	return e.kind == nil
}

// MarshalJSON produces {"Command": ["<serial>", {"<Name>": <shape>}]}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.kind == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string][2]any{
		"Command": {e.serial, map[Name]any{e.kind.Name(): e.kind.arguments()}},
	})
}

// String returns the JSON form, or an empty string for a zero Envelope.
func (e Envelope) String() string {
	if e.kind == nil {
		return ""
	}
	b, err := e.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}
