// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package validation

import (
	"errors"
	"strconv"
	"time"
)

// Route query validation errors. The message text is served to the
// browser verbatim, so it stays stable across releases.
var (
	ErrMissingParameters = errors.New("missing required parameters")
	ErrInvalidDeviceID   = errors.New("invalid device id")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrStartAfterEnd     = errors.New("start date must precede end date")
	ErrRangeTooLong      = errors.New("date range exceeds 7 days")
	ErrEndInFuture       = errors.New("end date is in the future")
)

// MaxRouteRange bounds a single history query. Larger windows produce
// response payloads big enough to stall the dashboard, so the server
// rejects them regardless of what the frontend asks for.
const MaxRouteRange = 7 * 24 * time.Hour

// rfc3339Tag is the validator datetime layout for route timestamps.
const rfc3339Tag = "datetime=" + time.RFC3339

// RouteQuery holds the raw query parameters of a history route request
// before validation.
type RouteQuery struct {
	DeviceID string
	From     string
	To       string
}

// RouteParams is a validated route query with typed values.
type RouteParams struct {
	DeviceID int64
	From     time.Time
	To       time.Time
}

// Validate applies the route query rules in order and stops at the
// first failure, so the client always sees the most fundamental
// problem first. The rules are server-authoritative: the frontend
// enforces the same limits, but only this pass is trusted.
func (q RouteQuery) Validate(now time.Time) (*RouteParams, error) {
	if q.DeviceID == "" || q.From == "" || q.To == "" {
		return nil, ErrMissingParameters
	}

	deviceID, err := strconv.ParseInt(q.DeviceID, 10, 64)
	if err != nil || deviceID <= 0 {
		return nil, ErrInvalidDeviceID
	}

	v := GetValidator()
	if v.Var(q.From, rfc3339Tag) != nil || v.Var(q.To, rfc3339Tag) != nil {
		return nil, ErrInvalidDateFormat
	}
	from, err := time.Parse(time.RFC3339, q.From)
	if err != nil {
		return nil, ErrInvalidDateFormat
	}
	to, err := time.Parse(time.RFC3339, q.To)
	if err != nil {
		return nil, ErrInvalidDateFormat
	}

	if !from.Before(to) {
		return nil, ErrStartAfterEnd
	}
	if to.Sub(from) > MaxRouteRange {
		return nil, ErrRangeTooLong
	}
	if to.After(now) {
		return nil, ErrEndInFuture
	}

	return &RouteParams{DeviceID: deviceID, From: from, To: to}, nil
}
