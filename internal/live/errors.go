package live

import (
	"errors"
	"fmt"
)

// AuthError means the service refused the authentication frame.
type AuthError struct {
	Code int64
}

var _ error = (*AuthError)(nil)

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication refused with code %d", e.Code)
}

// APIError is a non-zero code in an open-platform response envelope.
type APIError struct {
	Path    string
	Code    int64
	Message string
}

var _ error = (*APIError)(nil)

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned code %d: %s", e.Path, e.Code, e.Message)
}

// TransportError wraps a network or HTTP failure.
type TransportError struct {
	Op  string
	Err error
}

var _ error = (*TransportError)(nil)

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnClosed is returned by Conn.Read once the connection is gone.
	ErrConnClosed = errors.New("connection closed")
	ErrNoEndpoint = errors.New("start response has no websocket endpoint")
)
