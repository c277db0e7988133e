package client

import "fmt"

// ValidationError reports a locally rejected operation, such as an
// empty message body. It never alters session state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthError reports a rejected login. The session stays anonymous.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// TransportError wraps a failed network operation. Callers get the
// error instead of a silently stalled state update.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
