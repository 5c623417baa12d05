// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair builds a real browser/server WebSocket pair and returns the
// server-side ClientConnection plus the client end.
func wsPair(t *testing.T) (*ClientConnection, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *ClientConnection, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		conn := newClientConnection("test-conn", serverConn, nil)
		connCh <- conn
		// Run a read loop so pongs from the client are processed.
		for {
			if _, _, err := serverConn.ReadMessage(); err != nil {
				conn.Terminate()
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case conn := <-connCh:
		return conn, client
	case <-time.After(3 * time.Second):
		t.Fatal("server connection never materialized")
		return nil, nil
	}
}

func TestSweepToleratesOneMiss(t *testing.T) {
	conn, _ := wsPair(t)
	registry := NewRegistry()
	registry.Add(conn)
	monitor := NewMonitor(registry, time.Hour)

	// Cycle 1: flag was set at creation, cleared now, ping goes out.
	monitor.Sweep()
	// Simulate an unresponsive browser: no pong arrives.
	// Cycle 2: first miss, tolerated.
	monitor.Sweep()

	select {
	case <-conn.Done():
		t.Fatal("connection terminated after a single missed sweep")
	default:
	}

	// Cycle 3: second consecutive miss, reaped.
	monitor.Sweep()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not terminated after two consecutive missed sweeps")
	}
}

func TestSweepPongResetsMissCount(t *testing.T) {
	conn, _ := wsPair(t)
	registry := NewRegistry()
	registry.Add(conn)
	monitor := NewMonitor(registry, time.Hour)

	monitor.Sweep()
	monitor.Sweep() // first miss

	// Pong arrives before the next sweep.
	conn.alive.Store(true)
	monitor.Sweep() // recovered: miss count resets

	monitor.Sweep() // a later single miss is tolerated again
	select {
	case <-conn.Done():
		t.Fatal("recovered connection terminated on a single new miss")
	default:
	}
}

func TestResponsiveClientSurvivesManySweeps(t *testing.T) {
	conn, client := wsPair(t)
	registry := NewRegistry()
	registry.Add(conn)
	monitor := NewMonitor(registry, time.Hour)

	// The client's read loop answers pings with pongs automatically.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for range 5 {
		monitor.Sweep()
		// Give the pong time to travel back and re-arm the flag.
		waitFor(t, func() bool { return conn.alive.Load() }, "pong never re-armed the alive flag")
	}

	select {
	case <-conn.Done():
		t.Fatal("responsive connection should survive sweeps")
	default:
	}
}

func TestNewMonitorDefaultInterval(t *testing.T) {
	m := NewMonitor(NewRegistry(), 0)
	if m.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultSweepInterval)
	}
}
