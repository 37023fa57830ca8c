package signer

import (
	"errors"
	"fmt"
	"time"
)

// ErrPremiumRequired is returned when the signing service refuses a request
// that needs a paid plan.
var ErrPremiumRequired = errors.New("signing endpoint requires a premium plan")

// ErrNoHosts is returned when no signing host is configured.
var ErrNoHosts = errors.New("no signing hosts configured")

// ErrConnectInProgress is returned when another bring-up holds the same unique id.
var ErrConnectInProgress = errors.New("a connection for this user is already being established")

// RateLimitedError reports a 429 from a signing host.
type RateLimitedError struct {
	Host       string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("signing host %s rate limited, retry after %s", e.Host, e.RetryAfter)
	}
	return fmt.Sprintf("signing host %s rate limited", e.Host)
}

// SignError reports a failed or malformed exchange with a signing host.
type SignError struct {
	Host    string
	Status  int
	Message string
	Err     error
}

func (e *SignError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("signing host %s: status %d: %s", e.Host, e.Status, msg)
	}
	return fmt.Sprintf("signing host %s: %s", e.Host, msg)
}

func (e *SignError) Unwrap() error { return e.Err }
