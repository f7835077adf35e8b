package command

import "encoding/json"

// Shape is the JSON form of a command's arguments.
type Shape int

const (
	ShapeArray Shape = iota
	ShapeScalar
)

func (s Shape) String() string {
	if s == ShapeScalar {
		return "scalar"
	}
	return "array"
}

// MarshalJSON encodes the shape by name.
func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Entry describes one catalog command. Params lists caller-supplied parameters in
// positional order; MinArity and MaxArity count encoded array elements (both 1 for
// scalar shapes).
type Entry struct {
	Name     Name     `json:"name"`
	Params   []string `json:"params"`
	Optional []string `json:"optional,omitempty"`
	Shape    Shape    `json:"shape"`
	MinArity int      `json:"min_arity"`
	MaxArity int      `json:"max_arity"`
}

var catalog = []Entry{
	{Name: NameSetVolume, Params: []string{"channel", "level"}, Shape: ShapeArray, MinArity: 2, MaxArity: 2},
	{Name: NameLoadProfile, Params: []string{"profile"}, Shape: ShapeArray, MinArity: 2, MaxArity: 2},
	{Name: NameSetButtonColours, Params: []string{"button", "primary"}, Optional: []string{"secondary"}, Shape: ShapeArray, MinArity: 2, MaxArity: 3},
	{Name: NameSetSimpleColour, Params: []string{"target", "colour"}, Shape: ShapeArray, MinArity: 2, MaxArity: 2},
	{Name: NameSetGlobalColour, Params: []string{"colour"}, Shape: ShapeScalar, MinArity: 1, MaxArity: 1},
	{Name: NameSetFaderColours, Params: []string{"fader", "primary", "secondary"}, Shape: ShapeArray, MinArity: 3, MaxArity: 3},
	{Name: NameSetFaderMuteState, Params: []string{"fader", "state"}, Shape: ShapeArray, MinArity: 2, MaxArity: 2},
}

// Catalog returns a copy of every supported command in a fixed order.
func Catalog() []Entry {
	out := make([]Entry, len(catalog))
	for i, e := range catalog {
		e.Params = append([]string(nil), e.Params...)
		e.Optional = append([]string(nil), e.Optional...)
		out[i] = e
	}
	return out
}

// Lookup returns the catalog entry for name.
func Lookup(name Name) (Entry, bool) {
	for _, e := range Catalog() {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// known reports whether k is one of the catalog types. A struct embedding a catalog
// type satisfies Kind but is not known.
func known(k Kind) bool {
	switch k.(type) {
	case SetVolume, LoadProfile, SetButtonColours, SetSimpleColour,
		SetGlobalColour, SetFaderColours, SetFaderMuteState:
		return true
	default:
		return false
	}
}
