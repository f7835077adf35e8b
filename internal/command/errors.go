package command

import "errors"

var (
	// ErrEmptySerial is returned when a command is addressed to an empty or blank device serial.
	ErrEmptySerial = errors.New("empty device serial")
	// ErrInvalidColour is returned for anything other than six hexadecimal digits.
	ErrInvalidColour = errors.New("invalid colour format")
	// ErrUnknownCommandKind is returned for a command outside the catalog.
	ErrUnknownCommandKind = errors.New("unknown command kind")
	// ErrInvalidLevel is returned when a volume level is outside 0..100.
	ErrInvalidLevel = errors.New("volume level out of range")
	// ErrInvalidArguments is returned when loosely typed input cannot be turned into a command.
	ErrInvalidArguments = errors.New("invalid command arguments")
)

// Code returns a stable, upper-case identifier for the command error wrapped in err,
// or an empty string if err is not a command error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEmptySerial):
		return "EMPTY_SERIAL"
	case errors.Is(err, ErrInvalidColour):
		return "INVALID_COLOUR"
	case errors.Is(err, ErrUnknownCommandKind):
		return "UNKNOWN_COMMAND"
	case errors.Is(err, ErrInvalidLevel):
		return "INVALID_LEVEL"
	case errors.Is(err, ErrInvalidArguments):
		return "INVALID_ARGUMENTS"
	default:
		return ""
	}
}
