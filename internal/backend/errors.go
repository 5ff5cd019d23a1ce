package backend

import (
	"errors"
	"fmt"
)

// ErrTransport wraps failures that never reached a command handler
var ErrTransport = errors.New("backend unreachable")

// Error is a command rejected by the backend. Message is opaque text meant
// for substring classification or verbatim display.
type Error struct {
	Command string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Message extracts the backend message from err, or err.Error() when err
// did not originate from a command rejection.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// IsCommandError reports whether err is a backend command rejection
func IsCommandError(err error) bool {
	var be *Error
	return errors.As(err, &be)
}
