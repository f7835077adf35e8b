package server

import "encoding/json"

// Outgoing message types.
const (
	MsgStatus        = "status"
	MsgDaemonStatus  = "daemon_status"
	MsgCommandSent   = "command_sent"
	MsgCommandFailed = "command_failed"
	MsgScriptStatus  = "script_status"
	MsgScriptList    = "script_list"
	MsgScheduleList  = "schedule_list"
	MsgAccepted      = "accepted"
	MsgError         = "error"
)

// CommandRequest asks for one command to be sent to one device. Payload holds the
// command's named parameters.
type CommandRequest struct {
	Serial  string          `json:"serial"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ErrorBody is the payload of error responses and error messages.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}
