// Package protocol defines the messages streamed to API clients.
package protocol

import (
	"encoding/json"
	"fmt"

	"deskhook/internal/config"
	"deskhook/internal/coords"
	"deskhook/internal/geom"
	"deskhook/internal/overlay"
	"deskhook/internal/source"
	"deskhook/internal/window"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeHello is sent by the server right after the upgrade
	TypeHello MessageType = "hello"

	// TypeWindowOpened and TypeWindowClosed carry a WindowPayload
	TypeWindowOpened MessageType = "window_opened"
	TypeWindowClosed MessageType = "window_closed"

	// TypeKey and TypeButton carry an InputPayload for every accepted edge
	TypeKey    MessageType = "key"
	TypeButton MessageType = "button"

	// TypeTick is a periodic heartbeat carrying a TickPayload
	TypeTick MessageType = "tick"

	// TypePaused is sent when input handling is paused or resumed
	TypePaused MessageType = "paused"

	// TypeSnapshotRequest is sent by a client to get a full Snapshot back
	TypeSnapshotRequest  MessageType = "snapshot_req"
	TypeSnapshotResponse MessageType = "snapshot_resp"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// DecodePayload converts the generic payload of a received message into v.
func (m Message) DecodePayload(v any) error {
	if m.Payload == nil {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("re-encoding %s payload: %w", m.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// HelloPayload is the payload for TypeHello
type HelloPayload struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}

// WindowPayload is the payload for TypeWindowOpened and TypeWindowClosed
type WindowPayload struct {
	Frame  uint64      `json:"frame"`
	Window window.Info `json:"window"`
}

// InputPayload is the payload for TypeKey and TypeButton
type InputPayload struct {
	Frame   uint64 `json:"frame"`
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
}

// TickPayload is the payload for TypeTick
type TickPayload struct {
	Frame   uint64     `json:"frame"`
	Cursor  geom.Point `json:"cursor"`
	Windows int        `json:"windows"`
	Held    int        `json:"held"`
}

// PausedPayload is the payload for TypePaused
type PausedPayload struct {
	Paused bool `json:"paused"`
}

// Snapshot is an immutable view of the core taken at the end of a tick.
type Snapshot struct {
	Frame         uint64                 `json:"frame"`
	Enabled       bool                   `json:"enabled"`
	Paused        bool                   `json:"paused"`
	Modules       config.ModulesConfig   `json:"modules"`
	HeldKeys      []string               `json:"held_keys"`
	HeldButtons   []string               `json:"held_buttons"`
	Cursor        geom.Point             `json:"cursor"`
	CursorDelta   geom.Point             `json:"cursor_delta"`
	Windows       []window.Info          `json:"windows"`
	Overlays      []overlay.Placement    `json:"overlays"`
	Scale         *coords.ScaleReference `json:"scale,omitempty"`
	Taskbar       *source.TaskbarInfo    `json:"taskbar,omitempty"`
	DroppedEvents uint64                 `json:"dropped_events"`
}
