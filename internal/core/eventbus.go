package core

import "sync"

// EventType defines the type of event being published.
type EventType string

const (
	DaemonConnectedEvent  EventType = "DaemonConnected"
	CommandSentEvent      EventType = "CommandSent"
	CommandFailedEvent    EventType = "CommandFailed"
	ScriptChangedEvent    EventType = "ScriptChanged"
	SchedulesChangedEvent EventType = "SchedulesChanged"
)

// Event is the envelope for all system events.
type Event struct {
	Type    EventType
	Payload interface{}
}

// CommandResult is the payload of CommandSentEvent and CommandFailedEvent.
type CommandResult struct {
	Serial   string `json:"serial"`
	Command  string `json:"command"`
	Source   Source `json:"source"`
	Envelope string `json:"envelope,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DaemonStatus is the payload of DaemonConnectedEvent.
type DaemonStatus struct {
	Connected bool `json:"connected"`
}

// ScriptStatus is the payload of ScriptChangedEvent. Running is empty when no script runs.
type ScriptStatus struct {
	Running string `json:"running"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// EventBus handles pub/sub messaging for the application.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe returns a channel that receives events of the given types.
func (eb *EventBus) Subscribe(eventTypes ...EventType) Subscriber {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(Subscriber, 100) // Buffered channel so publishers don't block
	for _, t := range eventTypes {
		eb.subscribers[t] = append(eb.subscribers[t], ch)
	}

	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(ch Subscriber, eventTypes ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, t := range eventTypes {
		subs := eb.subscribers[t]
		for i, sub := range subs {
			if sub == ch {
				eb.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish distributes an event to all active subscribers for its type.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub <- event:
		default:
			// Slow subscriber, drop rather than block the publisher.
		}
	}
}
