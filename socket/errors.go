package socket

import (
	"errors"
	"fmt"
)

// Common errors for session management
var (
	// ErrSessionClosed indicates the session has been closed
	ErrSessionClosed = errors.New("session closed")

	// ErrListenerClosed indicates the listener has been closed
	ErrListenerClosed = errors.New("listener closed")
)

// Error represents a session error with additional context
type Error struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("socket %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("socket %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new Error
func newError(op, addr string, err error) *Error {
	return &Error{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
