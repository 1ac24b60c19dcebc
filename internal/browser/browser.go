// Package browser drives a browser instance hosted on a remote DevTools
// server. It owns the session lifecycle and exposes the small command set
// the portal flows are built from: navigate, fill, click, wait, read.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Endpoint identifies the remote browser automation server. It is immutable
// for the lifetime of a session.
type Endpoint struct {
	Host string
	Port int
}

// WebSocketURL returns the DevTools websocket URL for the endpoint.
func (e Endpoint) WebSocketURL() string {
	return fmt.Sprintf("ws://%s:%d", e.Host, e.Port)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

var (
	// ErrElementNotFound means no element matched the given selector on the
	// current page.
	ErrElementNotFound = errors.New("element not found")

	// ErrWaitTimeout means a bounded wait expired before its condition held.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrSessionClosed means a command was issued against a session that has
	// already been released.
	ErrSessionClosed = errors.New("session is closed")
)

// Condition is evaluated against the current page source during WaitFor.
// It must be a pure function of the page content.
type Condition func(pageHTML string) bool

// Transport issues commands against one live remote browser session.
// Every command is bounded by a timeout and converts expiry into an error
// rather than blocking. Close is idempotent and best-effort: it never
// reports failure to the caller.
type Transport interface {
	Open(ctx context.Context, ep Endpoint) (*Session, error)
	Navigate(ctx context.Context, sess *Session, url string) error
	SetField(ctx context.Context, sess *Session, selector, value string) error
	Click(ctx context.Context, sess *Session, selector string) error
	WaitFor(ctx context.Context, sess *Session, cond Condition, timeout time.Duration) error
	PageSource(ctx context.Context, sess *Session) (string, error)
	Close(sess *Session)
}

// Session is an exclusively-owned handle to one live remote browser
// instance. A session belongs to a single fetch and must never be shared
// across concurrent fetches.
type Session struct {
	mu      sync.Mutex
	ctx     context.Context
	cancels []context.CancelFunc
	closed  bool
}

// opContext derives a per-command context bounded by timeout. It fails if
// the session has already been closed.
func (s *Session) opContext(timeout time.Duration) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ctx == nil {
		return nil, nil, ErrSessionClosed
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	return ctx, cancel, nil
}

// markClosed flips the session to closed and reports whether this call was
// the one that closed it.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// release tears down the underlying browser contexts.
func (s *Session) release() {
	for _, cancel := range s.cancels {
		cancel()
	}
}
