package command

// Name is the wire token identifying a command kind.
type Name string

const (
	NameSetVolume         Name = "SetVolume"
	NameLoadProfile       Name = "LoadProfile"
	NameSetButtonColours  Name = "SetButtonColours"
	NameSetSimpleColour   Name = "SetSimpleColour"
	NameSetGlobalColour   Name = "SetGlobalColour"
	NameSetFaderColours   Name = "SetFaderColours"
	NameSetFaderMuteState Name = "SetFaderMuteState"
)

func (n Name) String() string {
	return string(n)
}

// Kind is one command of the closed catalog. Only the types declared in this
// package implement it.
type Kind interface {
	// Name returns the wire token of the command.
	Name() Name
	// arguments returns the encoded argument shape: a positional array or,
	// for SetGlobalColour, a bare string.
	arguments() any
}

// SetVolume sets a mixer channel volume.
type SetVolume struct {
	Channel string
	Level   int
}

func (SetVolume) Name() Name { return NameSetVolume }

func (c SetVolume) arguments() any {
	return []any{c.Channel, c.Level}
}

// loadProfileFlag is the trailing boolean the daemon expects after the profile name.
// Its meaning is undocumented so it is never exposed to callers.
const loadProfileFlag = false

// LoadProfile switches the device to a stored profile.
type LoadProfile struct {
	Profile string
}

func (LoadProfile) Name() Name { return NameLoadProfile }

func (c LoadProfile) arguments() any {
	return []any{c.Profile, loadProfileFlag}
}

// SetButtonColours sets the colours of a button.
type SetButtonColours struct {
	Button  string
	Colours ButtonColourPair
}

func (SetButtonColours) Name() Name { return NameSetButtonColours }

func (c SetButtonColours) arguments() any {
	if secondary, ok := c.Colours.Secondary(); ok {
		return []any{c.Button, c.Colours.Primary().String(), secondary.String()}
	}
	return []any{c.Button, c.Colours.Primary().String()}
}

// SetSimpleColour sets the colour of a single-colour target.
type SetSimpleColour struct {
	Target string
	Colour Colour
}

func (SetSimpleColour) Name() Name { return NameSetSimpleColour }

func (c SetSimpleColour) arguments() any {
	return []any{c.Target, c.Colour.String()}
}

// SetGlobalColour sets every lighting zone to one colour.
type SetGlobalColour struct {
	Colour Colour
}

func (SetGlobalColour) Name() Name { return NameSetGlobalColour }

// The daemon takes this colour as a bare string, not wrapped in an array.
func (c SetGlobalColour) arguments() any {
	return c.Colour.String()
}

// SetFaderColours sets the top and bottom colours of a fader.
type SetFaderColours struct {
	Fader     string
	Primary   Colour
	Secondary Colour
}

func (SetFaderColours) Name() Name { return NameSetFaderColours }

func (c SetFaderColours) arguments() any {
	return []any{c.Fader, c.Primary.String(), c.Secondary.String()}
}

// SetFaderMuteState sets the mute behaviour of a fader.
type SetFaderMuteState struct {
	Fader string
	State string
}

func (SetFaderMuteState) Name() Name { return NameSetFaderMuteState }

func (c SetFaderMuteState) arguments() any {
	return []any{c.Fader, c.State}
}
