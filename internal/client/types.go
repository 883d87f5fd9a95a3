// Package client provides the WebSocket event source and the HTTP command
// client the panel uses to talk to the bridge. Types mirror the bridge wire
// protocol without importing bridge packages.
package client

import (
	"encoding/json"
	"strings"
)

// FrameType identifies a WebSocket frame.
type FrameType string

const (
	FrameListen   FrameType = "listen"
	FrameUnlisten FrameType = "unlisten"
	FrameAck      FrameType = "ack"
	FrameError    FrameType = "error"
	FrameEvent    FrameType = "event"
)

// Frame is the envelope for every WebSocket message in both directions.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Status codes returned by the command endpoints.
const (
	StatusStarted        = "started"
	StatusStopped        = "stopped"
	StatusAlreadyRunning = "already_running"
	StatusNotRunning     = "not_running"
	StatusError          = "error"
)

// StartResult is the response to the start-server command.
type StartResult struct {
	Status   string `json:"status,omitempty"`
	Message  string `json:"message"`
	Addr     string `json:"addr,omitempty"`
	ServerOS string `json:"server_os,omitempty"`
}

// Succeeded reports whether the server came up. Servers that predate the
// status field only send a message; for those the legacy check on the word
// "successfully" applies.
func (r StartResult) Succeeded() bool {
	if r.Status != "" {
		return r.Status == StatusStarted
	}
	return strings.Contains(r.Message, "successfully")
}

// StopResult is the response to the stop-server command.
type StopResult struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// ConnectedClient is one entry of GET /api/clients.
type ConnectedClient struct {
	ID         int    `json:"id"`
	Addr       string `json:"addr"`
	DeviceName string `json:"device_name,omitempty"`
}
