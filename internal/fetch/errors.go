package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. The set is closed: every failure
// FetchUsage can return carries exactly one of these.
type Kind int

const (
	// KindTransport: the remote automation server could not be reached or
	// the session broke mid-flow. Transient by convention.
	KindTransport Kind = iota + 1
	// KindInvalidCredentials: the portal rejected the login. Not retryable
	// without operator intervention.
	KindInvalidCredentials
	// KindMfaRequired: the portal demands a challenge this client cannot
	// satisfy. Not retryable automatically.
	KindMfaRequired
	// KindUnexpectedPage: no known landmark matched after an interaction.
	// Indicates upstream markup drift; worth a bounded number of retries
	// since render delays can masquerade as it.
	KindUnexpectedPage
	// KindElementNotFound: no selector strategy resolved a required element.
	KindElementNotFound
	// KindTimeout: a bounded wait expired at login or extraction.
	KindTimeout
	// KindExtraction: the usage view was reached but no valid rows parsed.
	KindExtraction
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindMfaRequired:
		return "mfa required"
	case KindUnexpectedPage:
		return "unexpected page state"
	case KindElementNotFound:
		return "element not found"
	case KindTimeout:
		return "timeout"
	case KindExtraction:
		return "extraction error"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may be retried without
// operator intervention.
func (k Kind) Retryable() bool {
	switch k {
	case KindInvalidCredentials, KindMfaRequired:
		return false
	default:
		return true
	}
}

// Error is the typed failure surfaced by FetchUsage. Stage records where in
// the fetch state machine the failure was detected.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind carried by err, or zero when err is not a fetch
// error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
