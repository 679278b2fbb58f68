package chat

import (
	"context"
	"errors"
	"fmt"
)

// ErrorSubstitution replaces the in-flight text when a stream fails partway
// through. It replaces the accumulated text rather than appending to it.
const ErrorSubstitution = "I encountered an error processing your request. Please try again."

// ErrInsufficientCredits is returned when the backend refuses the request
// for lack of credits, so callers can render a specific message instead of
// a generic failure.
var ErrInsufficientCredits = errors.New("not enough credits to run this agent")

// TransportError is any non-success backend response other than the
// insufficient-credit case.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent request failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("agent request failed (status %d): %s", e.StatusCode, e.Body)
}

// IsAbort reports whether err stems from a cancelled stream rather than a
// failure. Aborts surface no user-visible error and leave partial text
// untouched.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
