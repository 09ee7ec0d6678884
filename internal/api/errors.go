// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	xglog "github.com/ManuGH/agribot/internal/log"
)

// APIError is a stable machine code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrUnauthorized   = &APIError{Code: "UNAUTHORIZED", Message: "Authentication required"}
	ErrRateLimited    = &APIError{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests, retry later"}
	ErrBusy           = &APIError{Code: "BUSY", Message: "Command inbox full, retry later"}
	ErrAlreadyRunning = &APIError{Code: "ALREADY_RUNNING", Message: "Workflow is already running"}
	ErrConfiguration  = &APIError{Code: "CONFIGURATION_ERROR", Message: "Workflow configuration is invalid"}
	ErrTimeout        = &APIError{Code: "TIMEOUT", Message: "Tick loop did not answer in time"}
	ErrStatsDisabled  = &APIError{Code: "STATS_DISABLED", Message: "Statistics store is not configured"}
	ErrInternal       = &APIError{Code: "INTERNAL", Message: "Internal error"}
	ErrBadRequest     = &APIError{Code: "BAD_REQUEST", Message: "Invalid request"}
)

type errorBody struct {
	Error     *APIError `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// RespondError writes a JSON error with the request id.
func RespondError(w http.ResponseWriter, r *http.Request, code int, apiErr *APIError, detail ...string) {
	body := errorBody{Error: apiErr, RequestID: chimw.GetReqID(r.Context())}
	if len(detail) > 0 {
		body.Detail = detail[0]
	}
	writeJSON(w, r, code, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		xglog.FromContext(r.Context()).Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}
