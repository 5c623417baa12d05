// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/8technologia/gps-realtime-tracker/internal/config"
	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/metrics"
)

// maxAuthAttempts bounds the relay loop: the original attempt plus at
// most one retry after re-authentication. A second 401 means the
// credentials themselves are bad, and retrying further would hammer
// the upstream for nothing.
const maxAuthAttempts = 2

// maxErrorBodySize limits how much of a response body is read for
// error reporting, preventing unbounded allocation on large responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads at most maxErrorBodySize bytes of a response
// body for diagnostics. Returns a placeholder if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client talks to the Traccar server on behalf of every browser. It
// owns the shared SessionStore, performs lazy login, and relays REST
// calls with a bounded re-authentication retry. Safe for concurrent
// use.
type Client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	sessions *SessionStore
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds an upstream client from configuration. The breaker
// wraps only the transport: HTTP status handling, including the 401
// retry, stays outside it so breaker state never changes the bounded
// retry semantics.
func NewClient(cfg config.UpstreamConfig) *Client {
	cbName := "traccar-api"
	metrics.CircuitBreakerState.Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit breaker state transition")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		email:    cfg.Email,
		password: cfg.Password,
		http: &http.Client{
			Timeout: cfg.Timeout,
			// The relay manages the session cookie itself; upstream
			// redirects would silently drop it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sessions: &SessionStore{},
		limiter:  rate.NewLimiter(rate.Limit(20), 40),
		breaker:  cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Sessions exposes the shared session store for health reporting and
// the realtime bridge handshake.
func (c *Client) Sessions() *SessionStore { return c.sessions }

// BaseURL returns the configured upstream base URL without a trailing
// slash.
func (c *Client) BaseURL() string { return c.baseURL }

// SocketURL returns the upstream realtime WebSocket URL derived from
// the REST base URL.
func (c *Client) SocketURL() string {
	u := c.baseURL + "/api/socket"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// Login authenticates against the upstream with the configured
// credentials and returns the established session. It does not touch
// the store; callers install the session so concurrent logins resolve
// by last-write-wins.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	form := url.Values{}
	form.Set("email", c.email)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/session", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAuthAttempt("unavailable")
		logging.Warn().Err(err).Str("url", c.baseURL).Msg("Upstream login request failed")
		return nil, fmt.Errorf("%w: login: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordAuthAttempt("rejected")
		logging.Warn().
			Int("status", resp.StatusCode).
			Str("email", c.email).
			Msg("Upstream rejected login")
		return nil, fmt.Errorf("%w: login rejected with status %d", ErrUnavailable, resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			metrics.RecordAuthAttempt("success")
			logging.Info().Msg("Upstream session established")
			return &Session{token: cookie.Value, createdAt: time.Now()}, nil
		}
	}

	metrics.RecordAuthAttempt("rejected")
	logging.Warn().Int("status", resp.StatusCode).Msg("Upstream login response carried no session cookie")
	return nil, fmt.Errorf("%w: login response carried no session cookie", ErrUnavailable)
}

// EnsureSession returns the current session, performing a login first
// when none is held. Concurrent callers may both log in; both sessions
// are valid upstream and the store keeps whichever landed last.
func (c *Client) EnsureSession(ctx context.Context) (*Session, error) {
	if sess, ok := c.sessions.Get(); ok {
		return sess, nil
	}
	sess, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	c.sessions.Replace(sess)
	return sess, nil
}

// Relay forwards one REST call to the upstream and returns the raw
// response for streaming. The caller owns resp.Body on success.
//
// Behavior, in order:
//  1. No session → login first; login failure → ErrUnavailable.
//  2. 401/403 from upstream → invalidate, re-login, retry exactly once;
//     a second auth failure → ErrUnavailable.
//  3. Success with a non-JSON content type → *ProtocolError, excerpt
//     logged, no retry, no re-auth.
//  4. Transport error → ErrTransport, no retry.
//  5. Anything else → response returned unmodified for passthrough.
func (c *Client) Relay(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAuthAttempts; attempt++ {
		sess, err := c.EnsureSession(ctx)
		if err != nil {
			metrics.RecordRelayRequest(path, "unavailable", time.Since(start))
			return nil, err
		}

		resp, err := c.do(ctx, method, path, query, sess)
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.RecordRelayRequest(path, "unavailable", time.Since(start))
				return nil, fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
			}
			metrics.RecordRelayRequest(path, "transport", time.Since(start))
			logging.Error().Err(err).Str("path", path).Msg("Upstream request transport failure")
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			_ = resp.Body.Close()
			c.sessions.Invalidate(sess)
			lastErr = fmt.Errorf("%w: session rejected with status %d", ErrUnavailable, resp.StatusCode)
			if attempt < maxAuthAttempts {
				metrics.RelayRetriesTotal.Inc()
				logging.Info().Str("path", path).Msg("Upstream session expired, re-authenticating")
				continue
			}
			metrics.RecordRelayRequest(path, "unauthorized", time.Since(start))
			logging.Warn().Str("path", path).Msg("Upstream rejected session again after re-authentication")
			return nil, lastErr
		}

		if ct := resp.Header.Get("Content-Type"); !isJSONContentType(ct) {
			excerpt := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			metrics.UpstreamProtocolViolations.Inc()
			metrics.RecordRelayRequest(path, "protocol", time.Since(start))
			logging.Error().
				Str("path", path).
				Int("status", resp.StatusCode).
				Str("content_type", ct).
				Str("body_excerpt", string(excerpt)).
				Msg("Upstream returned non-JSON response")
			return nil, &ProtocolError{StatusCode: resp.StatusCode, ContentType: ct, Excerpt: excerpt}
		}

		metrics.RecordRelayRequest(path, "ok", time.Since(start))
		return resp, nil
	}

	return nil, lastErr
}

// do performs one HTTP round trip with the session cookie attached.
// The rate limiter keeps relay bursts polite toward the upstream; the
// breaker only sees transport outcomes.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, sess *Session) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(sess.Cookie())

	return c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
}

// isJSONContentType accepts application/json with optional parameters
// (charset) or a +json structured suffix.
func isJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}
