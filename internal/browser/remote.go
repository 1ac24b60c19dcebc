package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options bound every remote command.
type Options struct {
	// CommandTimeout caps a single navigation or interaction command.
	CommandTimeout time.Duration
	// PollInterval is how often WaitFor re-checks the page.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	return o
}

// Remote is the chromedp-backed Transport. It attaches to a browser hosted
// on a remote DevTools endpoint rather than launching one locally.
type Remote struct {
	opts Options
	log  *logrus.Entry
}

// NewRemote creates a Transport for a remote automation server.
func NewRemote(opts Options) *Remote {
	return &Remote{
		opts: opts.withDefaults(),
		log:  logrus.WithField("component", "browser"),
	}
}

// Open attaches to the remote browser and prepares a fresh session. The
// session's lifetime is bound to ctx: cancelling ctx tears it down.
func (r *Remote) Open(ctx context.Context, ep Endpoint) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, ep.WebSocketURL())
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	sess := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}

	opCtx, cancel := context.WithTimeout(browserCtx, r.opts.CommandTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(userAgent),
	); err != nil {
		sess.release()
		return nil, fmt.Errorf("opening session at %s: %w", ep, err)
	}

	r.log.WithField("endpoint", ep.String()).Debug("session opened")
	return sess, nil
}

// Navigate loads the given URL and waits for the navigation to settle.
func (r *Remote) Navigate(ctx context.Context, sess *Session, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel, err := sess.opContext(r.opts.CommandTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// SetField resolves selector and types value into it. Returns
// ErrElementNotFound if nothing on the current page matches.
func (r *Remote) SetField(ctx context.Context, sess *Session, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel, err := sess.opContext(r.opts.CommandTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	found, err := elementExists(opCtx, selector)
	if err != nil {
		return fmt.Errorf("probing %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("%q: %w", selector, ErrElementNotFound)
	}
	if err := chromedp.Run(opCtx, chromedp.SendKeys(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("filling %q: %w", selector, err)
	}
	return nil
}

// Click resolves selector and clicks it. Returns ErrElementNotFound if
// nothing on the current page matches.
func (r *Remote) Click(ctx context.Context, sess *Session, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel, err := sess.opContext(r.opts.CommandTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	found, err := elementExists(opCtx, selector)
	if err != nil {
		return fmt.Errorf("probing %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("%q: %w", selector, ErrElementNotFound)
	}
	if err := chromedp.Run(opCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// WaitFor polls the page source until cond holds or timeout elapses. Page
// read errors during the wait are tolerated: the page may be mid-navigation.
func (r *Remote) WaitFor(ctx context.Context, sess *Session, cond Condition, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		html, err := r.PageSource(ctx, sess)
		if err == nil && cond(html) {
			return nil
		}
		if err != nil {
			r.log.WithError(err).Debug("page read failed during wait")
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("condition not met within %s: %w", timeout, ErrWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// PageSource returns the rendered markup of the current page.
func (r *Remote) PageSource(ctx context.Context, sess *Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opCtx, cancel, err := sess.opContext(r.opts.CommandTimeout)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	return html, nil
}

// Close releases the session. It is idempotent and best-effort: a broken or
// already-closed session is a no-op, and shutdown failures are logged, never
// returned.
func (r *Remote) Close(sess *Session) {
	if sess == nil {
		return
	}
	if !sess.markClosed() {
		return
	}
	if err := chromedp.Cancel(sess.ctx); err != nil {
		r.log.WithError(err).Debug("browser shutdown returned error")
	}
	sess.release()
	r.log.Debug("session closed")
}

func elementExists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}
