package myftp

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerClosed is returned when the server closes the control
	// connection while a reply is expected. The session cannot continue.
	ErrPeerClosed = errors.New("ftp: connection closed by peer")

	// ErrMalformedReply is returned when a reply line does not have the
	// "<ddd> <text>" shape. There is no resync strategy, so it is fatal.
	ErrMalformedReply = errors.New("ftp: malformed reply")

	// ErrFileUnavailable matches a *ProtocolError carrying code 550.
	ErrFileUnavailable = errors.New("ftp: file unavailable")
)

// CodeFileUnavailable is the reply code the server uses to refuse RETR.
const CodeFileUnavailable = 550

// ProtocolError represents a reply whose code differs from the one the
// client expected. It keeps the full context of the exchange.
//
// A ProtocolError fails the current operation only; the control connection
// remains usable.
type ProtocolError struct {
	// Command is the operation that was sent (e.g., "RETR")
	Command string

	// Response is the reply message received from the server (e.g., "No such file.")
	Response string

	// Code is the numeric reply code (e.g., 550)
	Code int

	// Expected is the reply code the client was waiting for (0 if any code other than Code was acceptable)
	Expected int
}

func newProtocolError(command string, reply *Reply, expected int) *ProtocolError {
	return &ProtocolError{
		Command:  command,
		Response: reply.Message,
		Code:     reply.Code,
		Expected: expected,
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Expected != 0 {
		return fmt.Sprintf("ftp: %s failed: %s (code %d, expected %d)", e.Command, e.Response, e.Code, e.Expected)
	}
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// Is reports whether the error matches target. A 550 reply matches
// ErrFileUnavailable.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrFileUnavailable && e.Code == CodeFileUnavailable
}

// IsTemporary returns true if the error is a temporary failure (4xx).
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

// ConnectError is returned by Dial when the control connection cannot be
// established.
type ConnectError struct {
	// Addr is the "host:port" that was dialed
	Addr string

	// Err is the underlying dial error
	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("ftp: failed to connect to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying dial error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends the session.
//
// A reply code mismatch or a failure of the local file is not fatal.
// Everything else coming from the control connection (peer closed,
// malformed reply, transport errors) is.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return false
	}
	var le *localError
	return !errors.As(err, &le)
}
