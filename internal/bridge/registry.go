// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package bridge

import (
	"sync"
)

// Registry tracks live bridged connections for the liveness monitor.
type Registry struct {
	mu    sync.RWMutex
	conns map[*ClientConnection]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[*ClientConnection]struct{})}
}

// Add registers a connection for sweeping.
func (r *Registry) Add(c *ClientConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// Remove deregisters a connection. Idempotent.
func (r *Registry) Remove(c *ClientConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// Snapshot returns the current connections. The sweep iterates over
// the copy so it never holds the lock while writing to sockets.
func (r *Registry) Snapshot() []*ClientConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*ClientConnection, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
