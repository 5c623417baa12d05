// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Package models defines data structures shared across the GPS tracker
// application: Traccar entity shapes, API response wrappers, and the
// push envelope carried over the realtime socket.
package models

import (
	"time"
)

// Device represents a tracked unit as reported by the Traccar API.
// The relay forwards device payloads verbatim; this struct documents
// the shape the dashboard consumes and backs the realtime envelope
// tests. Field names follow Traccar's camelCase JSON convention.
type Device struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	UniqueID   string         `json:"uniqueId"`
	Status     string         `json:"status"` // "online", "offline", or "unknown"
	Disabled   bool           `json:"disabled"`
	LastUpdate *time.Time     `json:"lastUpdate,omitempty"`
	PositionID int64          `json:"positionId,omitempty"`
	GroupID    int64          `json:"groupId,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Model      string         `json:"model,omitempty"`
	Contact    string         `json:"contact,omitempty"`
	Category   string         `json:"category,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Position is a single GPS fix reported by a device.
type Position struct {
	ID         int64          `json:"id"`
	DeviceID   int64          `json:"deviceId"`
	Protocol   string         `json:"protocol,omitempty"`
	ServerTime time.Time      `json:"serverTime"`
	DeviceTime time.Time      `json:"deviceTime"`
	FixTime    time.Time      `json:"fixTime"`
	Valid      bool           `json:"valid"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Altitude   float64        `json:"altitude"`
	Speed      float64        `json:"speed"` // knots, per Traccar convention
	Course     float64        `json:"course"`
	Address    string         `json:"address,omitempty"`
	Accuracy   float64        `json:"accuracy,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Event is a device event (geofence crossing, ignition, alarm) pushed
// over the realtime socket.
type Event struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	EventTime  time.Time      `json:"eventTime"`
	DeviceID   int64          `json:"deviceId"`
	PositionID int64          `json:"positionId,omitempty"`
	GeofenceID int64          `json:"geofenceId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// PushEnvelope is the message shape Traccar pushes over its WebSocket.
// Each frame carries one or more of the keys; absent keys are omitted
// entirely rather than sent as empty arrays. The bridge forwards the
// raw frames byte-for-byte, so this type exists for documentation and
// test fixtures rather than for decoding on the hot path.
type PushEnvelope struct {
	Devices   []Device   `json:"devices,omitempty"`
	Positions []Position `json:"positions,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}
