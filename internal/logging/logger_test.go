// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"INFO", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)

	Init(Config{Level: "debug", Format: "json", Output: &buf})
	Info().Str("upstream", "http://traccar.local").Msg("session established")

	out := buf.String()
	if !strings.Contains(out, `"upstream":"http://traccar.local"`) {
		t.Errorf("output missing structured field: %s", out)
	}
	if !strings.Contains(out, `"message":"session established"`) {
		t.Errorf("output missing message: %s", out)
	}
}

func TestInitLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)

	Init(Config{Level: "warn", Format: "json", Output: &buf})
	Info().Msg("below threshold")
	Warn().Msg("at threshold")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("info message leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "at threshold") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)
	SetLogger(NewTestLogger(&buf))

	ctx := ContextWithRequestID(context.Background(), "req-abc")
	Ctx(ctx).Info().Msg("relaying request")

	if !strings.Contains(buf.String(), `"request_id":"req-abc"`) {
		t.Errorf("output missing request_id: %s", buf.String())
	}
}

func TestCtxWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)
	SetLogger(NewTestLogger(&buf))

	Ctx(context.Background()).Info().Msg("no request scope")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id field: %s", buf.String())
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	id := GenerateRequestID()
	if id == "" {
		t.Fatal("GenerateRequestID returned empty string")
	}
	ctx := ContextWithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext = %q, want %q", got, id)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("bare context request id = %q, want empty", got)
	}
}
