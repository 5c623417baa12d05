// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors the relay boundary translates into HTTP statuses.
// Raw upstream error bodies never travel past this package; callers
// see one of these categories plus server-side logging of the detail.
var (
	// ErrUnavailable covers authentication failures and unreachable
	// upstream conditions. Mapped to 503.
	ErrUnavailable = errors.New("tracking server unavailable")

	// ErrTransport covers network-level failures of an otherwise
	// authenticated request. Mapped to a generic 500. Never retried.
	ErrTransport = errors.New("upstream request failed")
)

// ProtocolError reports a success response whose content type is not
// JSON, which means something other than the tracking server API
// answered (commonly a captive portal or a misconfigured proxy).
// Mapped to 502. Never retried and never triggers re-authentication:
// the session is not the problem.
type ProtocolError struct {
	StatusCode  int
	ContentType string
	Excerpt     []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("upstream protocol violation: status %d with content type %q", e.StatusCode, e.ContentType)
}
