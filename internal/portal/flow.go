// Package portal drives the Rocky Mountain Power account portal through a
// browser transport: sign-in, landmark detection, and extraction of usage
// history and billing forecasts from the rendered pages.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rmpower/internal/browser"
)

// Portal entry points. The portal rewrites locations client-side after
// these, so page states are detected by landmark, not URL.
const (
	LoginURL = "https://csapps.rockymountainpower.net/idm/login"
	UsageURL = "https://csapps.rockymountainpower.net/my-account/energy-usage"
)

// Flow runs the portal interactions for one fetch over a Transport. It
// holds no session state of its own; the session is passed to every call.
type Flow struct {
	transport   browser.Transport
	waitTimeout time.Duration
	log         *logrus.Entry
}

// NewFlow creates a Flow. waitTimeout bounds every landmark wait.
func NewFlow(t browser.Transport, waitTimeout time.Duration) *Flow {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &Flow{
		transport:   t,
		waitTimeout: waitTimeout,
		log:         logrus.WithField("component", "portal"),
	}
}

// setFirst tries each strategy in order and fills the first selector that
// resolves. Only the strategy name is logged, never the value.
func (f *Flow) setFirst(ctx context.Context, sess *browser.Session, target string, strategies []Strategy, value string) error {
	for _, s := range strategies {
		err := f.transport.SetField(ctx, sess, s.Selector, value)
		if err == nil {
			f.log.WithFields(logrus.Fields{"target": target, "strategy": s.Name}).Debug("field resolved")
			return nil
		}
		if !errors.Is(err, browser.ErrElementNotFound) {
			return err
		}
	}
	return fmt.Errorf("%s: no selector strategy resolved (%d tried): %w",
		target, len(strategies), browser.ErrElementNotFound)
}

// clickFirst tries each strategy in order and clicks the first selector
// that resolves.
func (f *Flow) clickFirst(ctx context.Context, sess *browser.Session, target string, strategies []Strategy) error {
	for _, s := range strategies {
		err := f.transport.Click(ctx, sess, s.Selector)
		if err == nil {
			f.log.WithFields(logrus.Fields{"target": target, "strategy": s.Name}).Debug("element clicked")
			return nil
		}
		if !errors.Is(err, browser.ErrElementNotFound) {
			return err
		}
	}
	return fmt.Errorf("%s: no selector strategy resolved (%d tried): %w",
		target, len(strategies), browser.ErrElementNotFound)
}
