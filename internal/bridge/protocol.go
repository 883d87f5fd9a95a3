package bridge

import (
	"encoding/json"
	"errors"

	"github.com/mobile-controller/panel/internal/devices"
)

type FrameType string

const (
	FrameListen   FrameType = "listen"
	FrameUnlisten FrameType = "unlisten"
	FrameAck      FrameType = "ack"
	FrameError    FrameType = "error"
	FrameEvent    FrameType = "event"
)

// Frame is the envelope of every WebSocket message.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Lifecycle event names.
const (
	EventClientAdded   = "client-added"
	EventClientRemoved = "client-removed"
	EventClientUpdated = "client-updated"
)

var knownEvents = map[string]bool{
	EventClientAdded:   true,
	EventClientRemoved: true,
	EventClientUpdated: true,
}

type ClientAdded struct {
	ID         int    `json:"id"`
	Addr       string `json:"addr"`
	DeviceName string `json:"device_name,omitempty"`
}

type ClientRemoved struct {
	ID int `json:"id"`
}

type ClientUpdated struct {
	ID         int    `json:"id"`
	DeviceName string `json:"device_name,omitempty"`
}

// Command results.
const (
	StatusStarted        = "started"
	StatusStopped        = "stopped"
	StatusAlreadyRunning = "already_running"
	StatusNotRunning     = "not_running"
	StatusError          = "error"
)

type StartResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Addr     string `json:"addr,omitempty"`
	ServerOS string `json:"server_os,omitempty"`
}

type StopResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotRunning     = errors.New("server not running")
	ErrUnknownClient  = errors.New("unknown client")
)

// Started describes a device server that came up.
type Started struct {
	Addr     string
	ServerOS string
}

// DeviceServer is the device server the bridge fronts.
type DeviceServer interface {
	Start() (Started, error)
	Stop() error
	RemoveClient(id int) error
	Clients() []devices.Device
}
