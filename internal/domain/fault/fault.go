// Package fault defines the storefront error taxonomy shared by the stores,
// the REST client and the shell.
package fault

import (
	"fmt"
	"net/http"
)

// AuthError reports invalid or expired credentials, or a missing bearer token.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "not authenticated"
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// FetchError reports a transport failure or an unexpected response.
// Status is zero when no HTTP response was received.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, http.StatusText(e.Status), e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError describes an out-of-bounds value that was corrected locally.
// It is only ever delivered as a warning, never returned as a failure.
type ValidationError struct {
	Field     string
	Requested int
	Applied   int
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %d adjusted to %d: %s", e.Field, e.Requested, e.Applied, e.Reason)
}

// BusinessError carries a server-side rejection. Message is shown to the user verbatim.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }
