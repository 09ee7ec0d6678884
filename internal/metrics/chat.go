// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_chat_signals_total",
		Help: "Chat lines matched by signal (station_full|event|disconnect)",
	}, []string{"signal"})

	chatSignalsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agribot_chat_signals_dropped_total",
		Help: "Chat lines dropped because the signal board was full",
	})

	chatCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_chat_commands_total",
		Help: "Chat commands by outcome (sent|throttled)",
	}, []string{"outcome"})

	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agribot_api_requests_total",
		Help: "Control API requests by route and status class",
	}, []string{"route", "status"})
)

// RecordChatSignal counts a matched chat line.
func RecordChatSignal(signal string) { chatSignals.WithLabelValues(signal).Inc() }

// RecordChatSignalDropped counts a line lost to back-pressure.
func RecordChatSignalDropped() { chatSignalsDropped.Inc() }

// RecordChatCommand counts a command send attempt.
func RecordChatCommand(outcome string) { chatCommands.WithLabelValues(outcome).Inc() }

// RecordAPIRequest counts a control API request.
func RecordAPIRequest(route, status string) { apiRequests.WithLabelValues(route, status).Inc() }
