// Package fetch orchestrates one usage fetch: it opens a remote browser
// session, signs in, extracts usage history, and guarantees the session is
// released on every exit path. All failures map to a closed taxonomy; retry
// policy belongs to the caller.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rmpower/internal/browser"
	"rmpower/internal/portal"
	"rmpower/pkg/models"
)

// state names a position in the fetch state machine. Failed is reachable
// from every non-terminal state.
type state int

const (
	stateInit state = iota
	stateSessionOpen
	stateLoggedIn
	stateExtracted
	stateDone
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSessionOpen:
		return "session-open"
	case stateLoggedIn:
		return "logged-in"
	case stateExtracted:
		return "extracted"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options tune one client's fetch behavior.
type Options struct {
	// Timeout bounds the whole fetch wall-clock time.
	Timeout time.Duration
	// WaitTimeout bounds each landmark wait inside the fetch.
	WaitTimeout time.Duration
	// Extract controls the usage view extraction.
	Extract portal.ExtractOptions
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Minute
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 30 * time.Second
	}
	return o
}

// Client runs fetches against one automation server endpoint. It is
// stateless between fetches: every fetch opens, uses, and closes its own
// session.
type Client struct {
	endpoint  browser.Endpoint
	transport browser.Transport
	opts      Options
	log       *logrus.Entry
}

// New creates a Client over the given transport.
func New(endpoint browser.Endpoint, transport browser.Transport, opts Options) *Client {
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		opts:      opts.withDefaults(),
		log:       logrus.WithField("component", "fetch"),
	}
}

// Result carries the outcome of one successful fetch.
type Result struct {
	// AccountID is the portal account number, when the landing page
	// exposes one.
	AccountID string
	// Records is non-empty, sorted by date ascending, no duplicate dates.
	Records []models.UsageRecord
}

// FetchUsage runs the full login-and-extract sequence. On failure the
// returned error is always a *Error; in every case, success or failure, the
// browser session is closed exactly once before FetchUsage returns.
func (c *Client) FetchUsage(ctx context.Context, creds models.Credentials) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	sess, err := c.transport.Open(ctx, c.endpoint)
	if err != nil {
		return nil, c.fail(stateInit, KindTransport, fmt.Errorf("opening session: %w", err))
	}
	defer c.transport.Close(sess)

	flow := portal.NewFlow(c.transport, c.opts.WaitTimeout)

	login, err := flow.Login(ctx, sess, creds)
	if err != nil {
		return nil, c.fail(stateSessionOpen, classify(err), err)
	}
	if kind, ok := loginFailureKind(login.Outcome); ok {
		return nil, c.fail(stateSessionOpen, kind, fmt.Errorf("login outcome: %s", login.Outcome))
	}

	records, err := flow.ExtractUsage(ctx, sess, c.opts.Extract)
	if err != nil {
		return nil, c.fail(stateLoggedIn, classify(err), err)
	}

	c.log.WithFields(logrus.Fields{
		"state":   stateDone,
		"records": len(records),
	}).Info("fetch complete")
	return &Result{AccountID: login.AccountID, Records: records}, nil
}

// FetchForecast runs login and reads the billing forecast instead of the
// usage history. Same session and error rules as FetchUsage.
func (c *Client) FetchForecast(ctx context.Context, creds models.Credentials) (*models.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	sess, err := c.transport.Open(ctx, c.endpoint)
	if err != nil {
		return nil, c.fail(stateInit, KindTransport, fmt.Errorf("opening session: %w", err))
	}
	defer c.transport.Close(sess)

	flow := portal.NewFlow(c.transport, c.opts.WaitTimeout)

	login, err := flow.Login(ctx, sess, creds)
	if err != nil {
		return nil, c.fail(stateSessionOpen, classify(err), err)
	}
	if kind, ok := loginFailureKind(login.Outcome); ok {
		return nil, c.fail(stateSessionOpen, kind, fmt.Errorf("login outcome: %s", login.Outcome))
	}

	forecast, err := flow.ExtractForecast(ctx, sess)
	if err != nil {
		return nil, c.fail(stateLoggedIn, classify(err), err)
	}
	forecast.AccountID = login.AccountID

	c.log.WithField("state", stateDone).Info("forecast fetched")
	return forecast, nil
}

// VerifyCredentials runs only the login leg of the state machine. A nil
// return means the portal accepted the credentials.
func (c *Client) VerifyCredentials(ctx context.Context, creds models.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	sess, err := c.transport.Open(ctx, c.endpoint)
	if err != nil {
		return c.fail(stateInit, KindTransport, fmt.Errorf("opening session: %w", err))
	}
	defer c.transport.Close(sess)

	login, err := portal.NewFlow(c.transport, c.opts.WaitTimeout).Login(ctx, sess, creds)
	if err != nil {
		return c.fail(stateSessionOpen, classify(err), err)
	}
	if kind, ok := loginFailureKind(login.Outcome); ok {
		return c.fail(stateSessionOpen, kind, fmt.Errorf("login outcome: %s", login.Outcome))
	}
	return nil
}

// loginFailureKind maps a non-success login outcome to its failure kind.
func loginFailureKind(o portal.Outcome) (Kind, bool) {
	switch o {
	case portal.OutcomeSuccess:
		return 0, false
	case portal.OutcomeInvalidCredentials:
		return KindInvalidCredentials, true
	case portal.OutcomeMfaRequired:
		return KindMfaRequired, true
	default:
		return KindUnexpectedPage, true
	}
}

// classify maps an error from the transport or portal layers onto the
// taxonomy. Anything unrecognized is a transport failure: the session or
// server broke in a way the flows could not name.
func classify(err error) Kind {
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, browser.ErrWaitTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, portal.ErrNoUsageRows),
		errors.Is(err, portal.ErrNoForecast):
		return KindExtraction
	default:
		return KindTransport
	}
}

// fail logs the transition into Failed and wraps err with its kind. The
// failure reason never contains credential material: only stages, kinds,
// and landmark/strategy names flow in from below.
func (c *Client) fail(from state, kind Kind, err error) *Error {
	fe := &Error{Kind: kind, Stage: from.String(), Err: err}
	c.log.WithFields(logrus.Fields{
		"state": from,
		"kind":  kind,
	}).Warn("fetch failed")
	return fe
}
