// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Package upstream implements the shared Traccar session and the REST
// relay: one process-wide session cookie, lazy login, and a bounded
// re-authentication retry around relayed calls.
package upstream

import (
	"net/http"
	"sync/atomic"
	"time"
)

// sessionCookieName is the cookie Traccar issues on login and expects
// back on every API call, including the WebSocket handshake.
const sessionCookieName = "JSESSIONID"

// Session is one upstream login's cookie value. Immutable once
// created; replaced wholesale on re-authentication.
type Session struct {
	token     string
	createdAt time.Time
}

// Token returns the raw session cookie value.
func (s *Session) Token() string { return s.token }

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Cookie returns the session as an http.Cookie ready to attach to a
// request or a WebSocket handshake header.
func (s *Session) Cookie() *http.Cookie {
	return &http.Cookie{Name: sessionCookieName, Value: s.token}
}

// SessionStore holds the single process-wide session with atomic
// replacement. Readers never observe a torn value. Concurrent logins
// are tolerated: if two requests re-authenticate at once, both logins
// succeed upstream and the later Replace wins, which is harmless
// because Traccar keeps both sessions valid.
type SessionStore struct {
	current atomic.Pointer[Session]
}

// Get returns the current session, or (nil, false) when no login has
// succeeded yet or the last session was invalidated.
func (st *SessionStore) Get() (*Session, bool) {
	s := st.current.Load()
	return s, s != nil
}

// Replace installs a freshly established session.
func (st *SessionStore) Replace(s *Session) {
	st.current.Store(s)
}

// Invalidate drops old if it is still the current session. A session
// installed by a concurrent re-login is left untouched so a slow 401
// cannot discard a newer, valid cookie.
func (st *SessionStore) Invalidate(old *Session) {
	st.current.CompareAndSwap(old, nil)
}

// Authenticated reports whether a session token is currently held.
func (st *SessionStore) Authenticated() bool {
	_, ok := st.Get()
	return ok
}
