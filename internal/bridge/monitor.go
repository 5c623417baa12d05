// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package bridge

import (
	"context"
	"time"

	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/metrics"
)

// DefaultSweepInterval is the liveness probe cadence. Together with
// the one-miss tolerance it gives a stalled browser between 30 and 60
// seconds before the pair is reaped.
const DefaultSweepInterval = 30 * time.Second

// Monitor periodically sweeps the registry, pinging every browser
// connection and reaping those that missed two consecutive sweeps. A
// single central ticker replaces per-connection ping goroutines, so
// the cost stays flat no matter how many bridges are open.
type Monitor struct {
	registry *Registry
	interval time.Duration
}

// NewMonitor creates a monitor over the given registry. A
// non-positive interval falls back to DefaultSweepInterval.
func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Monitor{registry: registry, interval: interval}
}

// Serve runs the sweep loop until the context is canceled. Implements
// the suture service contract.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one liveness cycle: reap connections on their second
// consecutive miss, clear the alive flag on the rest, and ping them so
// a healthy browser re-arms the flag before the next cycle.
func (m *Monitor) Sweep() {
	metrics.LivenessSweeps.Inc()

	for _, conn := range m.registry.Snapshot() {
		if conn.sweep() {
			metrics.LivenessTerminations.Inc()
			logging.Info().Str("conn_id", conn.ID()).Msg("Terminating unresponsive realtime client")
			conn.Terminate()
			continue
		}
		if err := conn.Ping(); err != nil {
			// A dead transport shows up here before any pong could;
			// no reason to wait two more cycles.
			logging.Debug().Str("conn_id", conn.ID()).Err(err).Msg("Liveness ping failed")
			conn.Terminate()
		}
	}
}

func (m *Monitor) String() string { return "liveness-monitor" }
