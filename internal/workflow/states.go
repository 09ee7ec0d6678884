// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

// State is a top-level workflow state.
type State int

const (
	StateIdle State = iota
	StateWaitingStartup
	StateConnecting
	StateManagingResources
	StateTeleporting
	StateWaitingArrival
	StateOpeningStation
	StateHarvesting
	StatePlanting
	StateFillingResource
	StateRefillingContainers
	StateNextStation
	StateEmptyingRemainder
	StateFetchingSupplies
	StateRecoveringSupplies
	StateDisconnecting
	StatePaused
	StateError

	stateCount
)

var stateNames = [...]string{
	StateIdle:                "IDLE",
	StateWaitingStartup:      "WAITING_STARTUP",
	StateConnecting:          "CONNECTING",
	StateManagingResources:   "MANAGING_RESOURCES",
	StateTeleporting:         "TELEPORTING",
	StateWaitingArrival:      "WAITING_ARRIVAL",
	StateOpeningStation:      "OPENING_STATION",
	StateHarvesting:          "HARVESTING",
	StatePlanting:            "PLANTING",
	StateFillingResource:     "FILLING_RESOURCE",
	StateRefillingContainers: "REFILLING_CONTAINERS",
	StateNextStation:         "NEXT_STATION",
	StateEmptyingRemainder:   "EMPTYING_REMAINDER",
	StateFetchingSupplies:    "FETCHING_SUPPLIES",
	StateRecoveringSupplies:  "RECOVERING_SUPPLIES",
	StateDisconnecting:       "DISCONNECTING",
	StatePaused:              "PAUSED",
	StateError:               "ERROR",
}

var _ = [1]struct{}{}[len(stateNames)-int(stateCount)]

func (s State) String() string {
	if s >= 0 && s < stateCount {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// StateNames lists every state name in declaration order.
func StateNames() []string {
	return append([]string(nil), stateNames[:]...)
}

// inWorld reports whether the agent is logged into the target environment
// and should watch for disconnects and relocation events.
func (s State) inWorld() bool {
	switch s {
	case StateManagingResources, StateTeleporting, StateWaitingArrival,
		StateOpeningStation, StateHarvesting, StatePlanting,
		StateFillingResource, StateRefillingContainers, StateNextStation,
		StateEmptyingRemainder, StateFetchingSupplies, StateRecoveringSupplies:
		return true
	}
	return false
}

// PauseReason says what happens when a pause ends.
type PauseReason int

const (
	// PauseNextSession starts the next planned session.
	PauseNextSession PauseReason = iota
	// PauseReconnect reconnects and resumes the interrupted session.
	PauseReconnect
	// PauseEvent restarts the session from the first station with a full resupply.
	PauseEvent
)

func (r PauseReason) String() string {
	switch r {
	case PauseReconnect:
		return "reconnect"
	case PauseEvent:
		return "event"
	default:
		return "next_session"
	}
}
