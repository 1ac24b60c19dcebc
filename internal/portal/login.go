package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rmpower/internal/browser"
	"rmpower/pkg/models"
)

// Outcome classifies the page state reached after submitting credentials.
type Outcome int

const (
	// OutcomeUnexpectedPage means no known landmark appeared. It is the
	// catch-all for upstream markup drift and is never treated as success.
	OutcomeUnexpectedPage Outcome = iota
	OutcomeSuccess
	OutcomeInvalidCredentials
	OutcomeMfaRequired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredentials:
		return "invalid credentials"
	case OutcomeMfaRequired:
		return "mfa required"
	default:
		return "unexpected page"
	}
}

// LoginResult is the outcome of one sign-in attempt. AccountID is only set
// on success, and only when the landing page exposes it.
type LoginResult struct {
	Outcome   Outcome
	AccountID string
}

// Login signs in to the portal. A non-nil error means the attempt could not
// be carried out (navigation failed, no credential field resolved); outcomes
// the portal itself reports come back in the LoginResult.
func (f *Flow) Login(ctx context.Context, sess *browser.Session, creds models.Credentials) (LoginResult, error) {
	if err := f.transport.Navigate(ctx, sess, LoginURL); err != nil {
		return LoginResult{}, fmt.Errorf("opening login page: %w", err)
	}

	// Consent banner may or may not be present.
	if err := f.clickFirst(ctx, sess, "cookie-banner", cookieBannerStrategies); err != nil &&
		!errors.Is(err, browser.ErrElementNotFound) {
		return LoginResult{}, err
	}

	if err := f.setFirst(ctx, sess, "username", usernameFieldStrategies, creds.Username); err != nil {
		return LoginResult{}, err
	}
	if err := f.setFirst(ctx, sess, "password", passwordFieldStrategies, creds.Password); err != nil {
		return LoginResult{}, err
	}
	if err := f.clickFirst(ctx, sess, "submit", submitButtonStrategies); err != nil {
		return LoginResult{}, err
	}

	cond := anyLandmark(accountHomeLandmark, loginErrorLandmark, mfaChallengeLandmark)
	if err := f.transport.WaitFor(ctx, sess, cond, f.waitTimeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			f.log.Warn("no known landmark after login submit")
			return LoginResult{Outcome: OutcomeUnexpectedPage}, nil
		}
		return LoginResult{}, fmt.Errorf("waiting for post-login page: %w", err)
	}

	html, err := f.transport.PageSource(ctx, sess)
	if err != nil {
		return LoginResult{}, fmt.Errorf("reading post-login page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return LoginResult{}, fmt.Errorf("parsing post-login page: %w", err)
	}

	switch {
	case mfaChallengeLandmark.Match(doc):
		f.log.WithField("landmark", mfaChallengeLandmark.Name).Info("login blocked by challenge")
		return LoginResult{Outcome: OutcomeMfaRequired}, nil
	case loginErrorLandmark.Match(doc):
		f.log.WithField("landmark", loginErrorLandmark.Name).Info("login rejected")
		return LoginResult{Outcome: OutcomeInvalidCredentials}, nil
	case accountHomeLandmark.Match(doc):
		f.log.WithField("landmark", accountHomeLandmark.Name).Debug("login succeeded")
		return LoginResult{Outcome: OutcomeSuccess, AccountID: accountNumber(doc)}, nil
	default:
		return LoginResult{Outcome: OutcomeUnexpectedPage}, nil
	}
}

// accountNumber pulls the account number off the landing page when shown.
func accountNumber(doc *goquery.Document) string {
	text := strings.TrimSpace(doc.Find("span.account-number, div.account-number").First().Text())
	return strings.ReplaceAll(text, " ", "_")
}
