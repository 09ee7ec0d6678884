// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"errors"
	"fmt"

	"github.com/ManuGH/agribot/internal/connection"
)

var (
	ErrNoStations         = errors.New("no stations configured")
	ErrMissingCredentials = connection.ErrMissingCredentials
	ErrMaintenanceWindow  = errors.New("inside maintenance window")
	ErrNotConnected       = connection.ErrNotConnected
	ErrRunning            = errors.New("workflow already running")
	ErrSurface            = errors.New("interaction surface failed")
	ErrDisconnected       = errors.New("unexpected disconnection")
	ErrEnvironmentEvent   = errors.New("forced relocation event")
)

// ErrorKind classifies workflow failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindConfiguration stops the agent.
	KindConfiguration
	// KindNetwork retries with backoff, forever.
	KindNetwork
	// KindInteractionSurface retries locally, then reconnects and resumes.
	KindInteractionSurface
	// KindUnexpectedDisconnection takes the crash recovery path.
	KindUnexpectedDisconnection
	// KindEnvironmentEvent takes the event recovery path.
	KindEnvironmentEvent
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindNetwork:
		return "NetworkError"
	case KindInteractionSurface:
		return "InteractionSurfaceError"
	case KindUnexpectedDisconnection:
		return "UnexpectedDisconnection"
	case KindEnvironmentEvent:
		return "EnvironmentEvent"
	default:
		return "None"
	}
}

// Recoverable reports whether errors of this kind are retried.
func (k ErrorKind) Recoverable() bool {
	return k != KindConfiguration && k != KindNone
}

// Error is a classified workflow error.
type Error struct {
	Kind        ErrorKind
	Msg         string
	Recoverable bool
	Err         error
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Msg:         fmt.Sprintf(format, args...),
		Recoverable: kind.Recoverable(),
		Err:         err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a workflow error, or KindNone.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindNone
}

// ErrorRecord is the last error kept in the session state.
type ErrorRecord struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
	Retries     int
}

// IsZero reports whether no error is recorded.
func (r ErrorRecord) IsZero() bool { return r.Kind == KindNone }
