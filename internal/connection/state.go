// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package connection

// State is a connection sub-state.
type State int

const (
	StateIdle State = iota
	StateSendingCredentials
	StateWaitingAfterCredentials
	StateCheckingBlockSignal
	StateSelectingEntryItem
	StateOpeningEntryMenu
	StateWaitingEntryMenu
	StateActivatingEntryOption
	StateWaitingTargetEnvironment
	StateBlockDisconnect
	StateWaitingReconnect
	StateConnected
	StateError

	stateCount
)

var stateNames = [...]string{
	StateIdle:                     "IDLE",
	StateSendingCredentials:       "SENDING_CREDENTIALS",
	StateWaitingAfterCredentials:  "WAITING_AFTER_CREDENTIALS",
	StateCheckingBlockSignal:      "CHECKING_BLOCK_SIGNAL",
	StateSelectingEntryItem:       "SELECTING_ENTRY_ITEM",
	StateOpeningEntryMenu:         "OPENING_ENTRY_MENU",
	StateWaitingEntryMenu:         "WAITING_ENTRY_MENU",
	StateActivatingEntryOption:    "ACTIVATING_ENTRY_OPTION",
	StateWaitingTargetEnvironment: "WAITING_TARGET_ENVIRONMENT",
	StateBlockDisconnect:          "BLOCK_DISCONNECT",
	StateWaitingReconnect:         "WAITING_RECONNECT",
	StateConnected:                "CONNECTED",
	StateError:                    "ERROR",
}

var _ = [1]struct{}{}[len(stateNames)-int(stateCount)]

func (s State) String() string {
	if s >= 0 && s < stateCount {
		return stateNames[s]
	}
	return "UNKNOWN"
}
