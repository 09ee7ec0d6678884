// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

// Ops sent to the client mod, one JSON object per line.
const (
	OpMove       = "move"
	OpPrimary    = "primary"
	OpSecondary  = "secondary"
	OpSlotClick  = "slot_click"
	OpSelect     = "select"
	OpClose      = "close"
	OpPosture    = "posture"
	OpCommand    = "command"
	OpMessage    = "message"
	OpStatus     = "status"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
)

// Action is one fire-and-forget request.
type Action struct {
	Op       string `json:"op"`
	Dest     string `json:"dest,omitempty"`
	Slot     int    `json:"slot"`
	Click    string `json:"click,omitempty"`
	On       bool   `json:"on,omitempty"`
	Text     string `json:"text,omitempty"`
	Severity string `json:"severity,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Inbound message types.
const (
	TypeState = "state"
	TypeChat  = "chat"
)

// Message is what the mod pushes: a full state snapshot or a chat line.
type Message struct {
	Type  string    `json:"type"`
	State *Snapshot `json:"state,omitempty"`
	Line  string    `json:"line,omitempty"`
}

// Snapshot is the mod's view of the player. Items and Slots are keyed by
// location name, then item kind name (see ports.Location and ports.ItemKind).
type Snapshot struct {
	Connected bool                      `json:"connected"`
	Position  string                    `json:"position"`
	Surface   string                    `json:"surface"`
	Items     map[string]map[string]int `json:"items"`
	Slots     map[string]map[string]int `json:"slots"`
}
