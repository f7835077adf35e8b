package core

import (
	"sync"
	"time"
)

// DeviceState is what the agent knows about one device from the commands it sent.
type DeviceState struct {
	LastCommand string    `json:"last_command"`
	LastError   string    `json:"last_error,omitempty"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is a copy of State safe to read and serialise.
type Snapshot struct {
	DaemonConnected bool                   `json:"daemon_connected"`
	RunningScript   string                 `json:"running_script"`
	Devices         map[string]DeviceState `json:"devices"`
}

// State holds the single source of truth for the agent.
type State struct {
	mu              sync.RWMutex
	daemonConnected bool
	runningScript   string
	devices         map[string]DeviceState
	now             func() time.Time
}

// NewState creates a new State instance.
func NewState() *State {
	return &State{
		devices: make(map[string]DeviceState),
		now:     time.Now,
	}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make(map[string]DeviceState, len(s.devices))
	for k, v := range s.devices {
		devices[k] = v
	}
	return Snapshot{
		DaemonConnected: s.daemonConnected,
		RunningScript:   s.runningScript,
		Devices:         devices,
	}
}

// SetDaemonConnected updates the daemon connection flag and returns the previous value.
func (s *State) SetDaemonConnected(connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.daemonConnected
	s.daemonConnected = connected
	return was
}

// SetRunningScript updates the running script name.
func (s *State) SetRunningScript(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningScript = name
}

// RecordResult updates the device entry for a finished command. A nil err counts as sent.
func (s *State) RecordResult(serial, commandName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devices[serial]
	d.LastCommand = commandName
	d.UpdatedAt = s.now()
	if err != nil {
		d.Failed++
		d.LastError = err.Error()
	} else {
		d.Sent++
		d.LastError = ""
	}
	s.devices[serial] = d
}
