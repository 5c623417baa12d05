// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Package api provides the HTTP surface of the tracker: chi routing,
// relay passthrough handlers, the realtime bridge endpoint, and the
// standardized error envelope.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/middleware"
	"github.com/8technologia/gps-realtime-tracker/internal/models"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone; all we can do is log.
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes the standardized error envelope. The message is
// the only upstream-facing text a browser ever sees; raw upstream
// bodies stay in the server logs.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
