package core

import "goxlr-controller/internal/command"

// Source names where a command came from.
type Source string

const (
	SourceAPI       Source = "api"
	SourceWebSocket Source = "websocket"
	SourceMQTT      Source = "mqtt"
	SourceScheduler Source = "scheduler"
	SourceScript    Source = "script"
)

// Command is a typed request to send one command to one device. The agent encodes it
// and hands the envelope to the device's queue lane.
type Command struct {
	Serial string
	Kind   command.Kind
	Source Source
}

// CommandChannel is the single channel that the core Agent listens to for commands.
type CommandChannel chan Command

// TrySubmit queues cmd without blocking and reports whether it was accepted.
func (ch CommandChannel) TrySubmit(cmd Command) bool {
	select {
	case ch <- cmd:
		return true
	default:
		return false
	}
}
