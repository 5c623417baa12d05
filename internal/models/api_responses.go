// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package models

import (
	"time"
)

// ErrorResponse is the standardized JSON error envelope returned by
// every endpoint on failure. Successful relay responses stream the
// upstream body unchanged and never use this wrapper.
//
// Example:
//
//	{
//	  "error": {
//	    "code": "upstream_unavailable",
//	    "message": "tracking server unavailable"
//	  },
//	  "timestamp": "2026-08-30T12:00:00Z"
//	}
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail carries a machine-readable code and a human-readable
// message. Messages never echo raw upstream error bodies.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in ErrorDetail.Code.
const (
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeUpstreamProtocol    = "upstream_protocol_error"
	ErrCodeValidation          = "validation_failed"
	ErrCodeInternal            = "internal_error"
)

// HealthResponse reports process health. The endpoint always answers
// 200: Authenticated conveys upstream session state without making the
// service itself look down.
type HealthResponse struct {
	Status        string    `json:"status"`
	Authenticated bool      `json:"authenticated"`
	Version       string    `json:"version"`
	Uptime        string    `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
}

// AppConfigResponse carries frontend bootstrap settings.
type AppConfigResponse struct {
	MapboxToken string `json:"mapboxToken"`
}
