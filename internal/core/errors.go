package core

import "errors"

// Error codes for synchronous precondition failures.
const (
	ErrCodeAlreadyConnected = "already-connected"
	ErrCodeNotConnected     = "not-connected"
)

var (
	// ErrAlreadyConnected is returned by Connect when the session is
	// not in the closed state.
	ErrAlreadyConnected = errors.New("the connection is already established")
	// ErrNotConnected is returned by any operation that requires an
	// open connection, before any transport I/O happens.
	ErrNotConnected = errors.New("the connection is not established")
	// ErrConnClosed is returned by Conn reads when the peer closed
	// the transport cleanly.
	ErrConnClosed = errors.New("connection closed")
)
