// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package validation

import (
	"errors"
	"testing"
	"time"
)

// fixed reference clock so range and future checks are deterministic
var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) string {
	return t.Format(time.RFC3339)
}

func TestRouteQueryValid(t *testing.T) {
	q := RouteQuery{
		DeviceID: "42",
		From:     ts(now.Add(-24 * time.Hour)),
		To:       ts(now.Add(-1 * time.Hour)),
	}

	params, err := q.Validate(now)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if params.DeviceID != 42 {
		t.Errorf("DeviceID = %d, want 42", params.DeviceID)
	}
	if got := params.To.Sub(params.From); got != 23*time.Hour {
		t.Errorf("parsed range = %v, want 23h", got)
	}
}

func TestRouteQueryExactSevenDaysAccepted(t *testing.T) {
	q := RouteQuery{
		DeviceID: "1",
		From:     ts(now.Add(-7 * 24 * time.Hour)),
		To:       ts(now),
	}
	if _, err := q.Validate(now); err != nil {
		t.Errorf("7-day range should be accepted, got: %v", err)
	}
}

func TestRouteQueryRuleOrder(t *testing.T) {
	tests := []struct {
		name string
		q    RouteQuery
		want error
	}{
		{
			name: "all missing",
			q:    RouteQuery{},
			want: ErrMissingParameters,
		},
		{
			name: "missing to",
			q:    RouteQuery{DeviceID: "1", From: ts(now.Add(-time.Hour))},
			want: ErrMissingParameters,
		},
		{
			// A missing parameter masks a bad device id: rule 1 fires first.
			name: "missing from with bad device id",
			q:    RouteQuery{DeviceID: "abc", To: ts(now)},
			want: ErrMissingParameters,
		},
		{
			name: "non-integer device id",
			q:    RouteQuery{DeviceID: "abc", From: "bad", To: "bad"},
			want: ErrInvalidDeviceID,
		},
		{
			name: "zero device id",
			q:    RouteQuery{DeviceID: "0", From: ts(now.Add(-time.Hour)), To: ts(now)},
			want: ErrInvalidDeviceID,
		},
		{
			name: "negative device id",
			q:    RouteQuery{DeviceID: "-5", From: ts(now.Add(-time.Hour)), To: ts(now)},
			want: ErrInvalidDeviceID,
		},
		{
			name: "float device id",
			q:    RouteQuery{DeviceID: "4.2", From: ts(now.Add(-time.Hour)), To: ts(now)},
			want: ErrInvalidDeviceID,
		},
		{
			name: "bad from format",
			q:    RouteQuery{DeviceID: "1", From: "2026-08-30", To: ts(now)},
			want: ErrInvalidDateFormat,
		},
		{
			name: "bad to format",
			q:    RouteQuery{DeviceID: "1", From: ts(now.Add(-time.Hour)), To: "30/08/2026"},
			want: ErrInvalidDateFormat,
		},
		{
			name: "start after end",
			q:    RouteQuery{DeviceID: "1", From: ts(now), To: ts(now.Add(-time.Hour))},
			want: ErrStartAfterEnd,
		},
		{
			name: "start equals end",
			q:    RouteQuery{DeviceID: "1", From: ts(now), To: ts(now)},
			want: ErrStartAfterEnd,
		},
		{
			name: "range over seven days",
			q: RouteQuery{
				DeviceID: "1",
				From:     ts(now.Add(-8 * 24 * time.Hour)),
				To:       ts(now.Add(-time.Hour)),
			},
			want: ErrRangeTooLong,
		},
		{
			// Over-long range reported before the future end.
			name: "long range ending in future",
			q: RouteQuery{
				DeviceID: "1",
				From:     ts(now.Add(-7 * 24 * time.Hour)),
				To:       ts(now.Add(2 * time.Hour)),
			},
			want: ErrRangeTooLong,
		},
		{
			name: "end in future",
			q:    RouteQuery{DeviceID: "1", From: ts(now.Add(-time.Hour)), To: ts(now.Add(time.Hour))},
			want: ErrEndInFuture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.q.Validate(now)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRouteQueryErrorMessages(t *testing.T) {
	want := map[error]string{
		ErrMissingParameters: "missing required parameters",
		ErrInvalidDeviceID:   "invalid device id",
		ErrInvalidDateFormat: "invalid date format",
		ErrStartAfterEnd:     "start date must precede end date",
		ErrRangeTooLong:      "date range exceeds 7 days",
		ErrEndInFuture:       "end date is in the future",
	}
	for err, msg := range want {
		if err.Error() != msg {
			t.Errorf("message = %q, want %q", err.Error(), msg)
		}
	}
}
