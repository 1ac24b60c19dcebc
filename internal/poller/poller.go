// Package poller runs the recurring fetch loop: it invokes the fetch client
// on an interval, forwards results to a sink, retries retryable failures
// with backoff, and stops on failures that need operator intervention.
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"rmpower/internal/fetch"
	"rmpower/pkg/models"
)

// ErrFetchInFlight means a poll cycle was skipped because the previous
// fetch for this account had not finished. Sessions are single-owner, so
// overlapping fetches are never started.
var ErrFetchInFlight = errors.New("previous fetch still in flight")

// Fetcher is the fetch client surface the poller drives.
type Fetcher interface {
	FetchUsage(ctx context.Context, creds models.Credentials) (*fetch.Result, error)
}

// Sink receives the records produced by each successful fetch.
type Sink interface {
	Store(ctx context.Context, records []models.UsageRecord) error
}

// Options tune the polling loop.
type Options struct {
	// Interval between fetch cycles. The portal updates roughly daily, so
	// the default is 12h.
	Interval time.Duration
	// MaxRetries is how many times a retryable failure is retried within
	// one cycle.
	MaxRetries int
	// RetryBackoff is the wait before the first retry; it doubles per
	// attempt.
	RetryBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 12 * time.Hour
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 2
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 30 * time.Second
	}
	return o
}

// Poller periodically fetches usage for one account and forwards it to a
// sink. It guarantees at most one in-flight fetch for the account.
type Poller struct {
	fetcher  Fetcher
	creds    models.Credentials
	sink     Sink
	opts     Options
	inFlight atomic.Bool
	log      *logrus.Entry
}

// New creates a Poller.
func New(fetcher Fetcher, creds models.Credentials, sink Sink, opts Options) *Poller {
	return &Poller{
		fetcher: fetcher,
		creds:   creds,
		sink:    sink,
		opts:    opts.withDefaults(),
		log:     logrus.WithField("component", "poller"),
	}
}

// Run polls immediately and then on the configured interval, until ctx is
// cancelled or a fetch fails in a way retrying cannot fix (rejected
// credentials, MFA demand).
func (p *Poller) Run(ctx context.Context) error {
	if err := p.PollOnce(ctx); terminal(err) {
		return err
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PollOnce(ctx); terminal(err) {
				return err
			}
		}
	}
}

// PollOnce runs one fetch cycle: fetch with bounded retries for retryable
// failures, then hand the batch to the sink. Returns ErrFetchInFlight when
// the previous cycle has not finished.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Warn("previous fetch still in flight, skipping cycle")
		return ErrFetchInFlight
	}
	defer p.inFlight.Store(false)

	backoff := p.opts.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			p.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
			}).Info("retrying fetch")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, err := p.fetcher.FetchUsage(ctx, p.creds)
		if err == nil {
			p.log.WithField("records", len(result.Records)).Info("poll cycle complete")
			if err := p.sink.Store(ctx, result.Records); err != nil {
				p.log.WithError(err).Error("storing fetched records failed")
				return err
			}
			return nil
		}

		lastErr = err
		kind := fetch.KindOf(err)
		if !kind.Retryable() {
			p.log.WithError(err).Error("fetch failed, operator intervention required")
			return err
		}
		p.log.WithFields(logrus.Fields{
			"kind":    kind,
			"attempt": attempt,
		}).Warn("fetch failed")
	}

	p.log.WithError(lastErr).Error("fetch failed after retries, will try next cycle")
	return lastErr
}

// terminal reports whether err should stop the polling loop. Only failures
// an operator must resolve qualify; everything else waits for the next tick.
func terminal(err error) bool {
	if err == nil {
		return false
	}
	if kind := fetch.KindOf(err); kind != 0 {
		return !kind.Retryable()
	}
	return errors.Is(err, context.Canceled)
}
