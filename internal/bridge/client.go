// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Package bridge pairs each browser WebSocket with its own upstream
// Traccar socket and forwards frames verbatim in both directions. The
// two connections share a lifetime: either side closing or erroring
// tears down both. A registry plus a periodic liveness sweep reap
// browser connections that stop answering pings.
package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/8technologia/gps-realtime-tracker/internal/logging"
)

const (
	// writeWait bounds a single frame write to either side.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Push envelopes for large
	// fleets stay well under this.
	maxMessageSize = 512 * 1024 // 512 KB
)

// ClientConnection is one bridged pair: the browser socket and its
// dedicated upstream socket. Created by the Bridge, registered for
// liveness sweeps, torn down exactly once.
type ClientConnection struct {
	id       string
	browser  *websocket.Conn
	upstream *websocket.Conn

	// alive is set by the browser's pong and cleared by each sweep.
	alive  atomic.Bool
	misses atomic.Int32

	// browserMu serializes browser writes: the downstream pump, the
	// sweep's pings, and close frames may race otherwise.
	browserMu sync.Mutex

	teardown sync.Once
	done     chan struct{}
}

func newClientConnection(id string, browser, upstream *websocket.Conn) *ClientConnection {
	c := &ClientConnection{
		id:       id,
		browser:  browser,
		upstream: upstream,
		done:     make(chan struct{}),
	}
	// A fresh connection has not missed anything yet.
	c.alive.Store(true)

	browser.SetReadLimit(maxMessageSize)
	browser.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

// ID returns the connection's request-scoped identifier, used to
// correlate log lines across the pair.
func (c *ClientConnection) ID() string { return c.id }

// Done is closed when the pair has been torn down.
func (c *ClientConnection) Done() <-chan struct{} { return c.done }

// writeBrowser forwards one frame to the browser, preserving the
// message type.
func (c *ClientConnection) writeBrowser(messageType int, payload []byte) error {
	c.browserMu.Lock()
	defer c.browserMu.Unlock()
	if err := c.browser.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.browser.WriteMessage(messageType, payload)
}

// Ping probes the browser side. The pong, if any, sets the alive flag
// before the next sweep reads it.
func (c *ClientConnection) Ping() error {
	c.browserMu.Lock()
	defer c.browserMu.Unlock()
	if err := c.browser.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.browser.WriteMessage(websocket.PingMessage, nil)
}

// CloseWithPolicy sends a 1008 policy-violation close frame to the
// browser before tearing down. Used when the upstream session cannot
// be established.
func (c *ClientConnection) CloseWithPolicy(reason string) {
	c.browserMu.Lock()
	deadline := time.Now().Add(writeWait)
	_ = c.browser.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	c.browserMu.Unlock()
	c.Terminate()
}

// Terminate forcibly closes both sides without a close handshake. Safe
// to call multiple times; only the first has effect. Closing the raw
// connections unblocks both pump goroutines.
func (c *ClientConnection) Terminate() {
	c.teardown.Do(func() {
		_ = c.browser.Close()
		if c.upstream != nil {
			_ = c.upstream.Close()
		}
		close(c.done)
		logging.Debug().Str("conn_id", c.id).Msg("Bridge pair torn down")
	})
}

// sweep advances the liveness state by one cycle and reports whether
// the connection should be reaped. One missed cycle is tolerated; the
// second consecutive miss is fatal.
func (c *ClientConnection) sweep() (reap bool) {
	if c.alive.Swap(false) {
		c.misses.Store(0)
		return false
	}
	return c.misses.Add(1) >= 2
}
