package pduclient

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client.
var (
	// ErrNotConnected indicates a command was issued while the session was
	// not in the Ready phase. The command has no side effect.
	ErrNotConnected = errors.New("not connected")

	// ErrTimeout indicates no correlated reply arrived within the deadline.
	// The transport is torn down as a consequence; an unresponsive device
	// must not keep holding the session.
	ErrTimeout = errors.New("command timed out")

	// ErrInvalidLogin indicates the device rejected the credentials. This is
	// terminal for the session: no reconnect is attempted.
	ErrInvalidLogin = errors.New("invalid login")

	// ErrRequestInFlight indicates a command with the same correlation key is
	// already awaiting its reply. The protocol does not pipeline same-named
	// commands, so the second caller fails fast instead of queueing.
	ErrRequestInFlight = errors.New("request already in flight for this key")

	// ErrAlreadyConnected indicates Connect was called while a session was
	// already established or being established.
	ErrAlreadyConnected = errors.New("already connected or connecting")

	// ErrClosed indicates the client has been closed and will not reconnect.
	ErrClosed = errors.New("client is closed")
)

// ConnectError indicates the transport could not be established, or dropped
// before the session reached Ready. Unless the client is closed, connect
// errors are retried automatically with capped exponential backoff.
type ConnectError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}

	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

func newConnectError(message string, cause error) error {
	return &ConnectError{Message: message, Cause: cause}
}

// ProtocolError indicates the device explicitly answered a command with its
// error token. The session itself stays Ready; only the issuing caller sees
// the failure.
type ProtocolError struct {
	// Command is the outbound line the device rejected, when attributable.
	// A rejection that arrived with no control command pending cannot name
	// its command and leaves this empty.
	Command string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Command == "" {
		return "device answered #Error"
	}

	return fmt.Sprintf("device answered #Error for %q", e.Command)
}
