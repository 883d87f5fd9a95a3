// Package ingest turns the three client lifecycle streams pushed by the
// device server into typed notifications. It has no dependencies on the rest
// of the panel.
package ingest

import (
	"encoding/json"
	"fmt"
)

// Event names a lifecycle stream. The values are the wire contract.
type Event string

const (
	EventClientAdded   Event = "client-added"
	EventClientRemoved Event = "client-removed"
	EventClientUpdated Event = "client-updated"
)

// Events lists every stream a Subscription listens to.
var Events = []Event{EventClientAdded, EventClientRemoved, EventClientUpdated}

// Notification is one decoded lifecycle message: Added, Removed or Updated.
type Notification interface {
	ClientID() int
	notification()
}

// Added reports a newly connected client.
type Added struct {
	ID          int     `json:"id"`
	Address     string  `json:"addr"`
	DisplayName *string `json:"device_name,omitempty"`
}

// Removed reports a disconnected client.
type Removed struct {
	ID int `json:"id"`
}

// Updated carries new metadata for a connected client. A nil DisplayName
// means the server has no name for the device.
type Updated struct {
	ID          int     `json:"id"`
	DisplayName *string `json:"device_name,omitempty"`
}

func (n Added) ClientID() int   { return n.ID }
func (n Removed) ClientID() int { return n.ID }
func (n Updated) ClientID() int { return n.ID }

func (Added) notification()   {}
func (Removed) notification() {}
func (Updated) notification() {}

// Name returns a pointer to s, for building notifications with a display name.
func Name(s string) *string {
	return &s
}

// Decode parses a payload received on the given stream.
func Decode(event Event, payload json.RawMessage) (Notification, error) {
	switch event {
	case EventClientAdded:
		var n Added
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return n, nil
	case EventClientRemoved:
		var n Removed
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return n, nil
	case EventClientUpdated:
		var n Updated
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown event %q", event)
}

// EventOf returns the stream a notification travels on.
func EventOf(n Notification) Event {
	switch n.(type) {
	case Added:
		return EventClientAdded
	case Removed:
		return EventClientRemoved
	case Updated:
		return EventClientUpdated
	}
	return ""
}
