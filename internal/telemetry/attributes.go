// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by workflow spans.
const (
	SessionKindKey      = "session.kind"
	SessionStationsKey  = "session.stations"
	SessionRefillKey    = "session.refill"
	SessionMergedKey    = "session.merged"
	SessionCompletedKey = "session.stations_completed"
	ErrorKindKey        = "error.kind"
)

// SessionAttributes describes a session at its start.
func SessionAttributes(kind string, stations int, refill, merged bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionKindKey, kind),
		attribute.Int(SessionStationsKey, stations),
		attribute.Bool(SessionRefillKey, refill),
		attribute.Bool(SessionMergedKey, merged),
	}
}

// SessionEndAttributes describes a session when its span ends. errorKind is
// omitted when empty.
func SessionEndAttributes(completed int, errorKind string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(SessionCompletedKey, completed)}
	if errorKind != "" {
		attrs = append(attrs, attribute.String(ErrorKindKey, errorKind))
	}
	return attrs
}
