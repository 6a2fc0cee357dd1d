package client

import (
	"errors"
	"fmt"

	"github.com/cpu/acmeshell/acme/resources"
)

// Kind is the category of an error returned by a Connection. Callers should
// branch on Kind (and on the Problem type for KindServerProtocol) rather than
// on error strings.
type Kind string

const (
	// The exchange with the server failed or was cancelled.
	KindTransport Kind = "Transport"
	// The server response was missing expected data or could not be decoded.
	KindProtocol Kind = "Protocol"
	// The server answered with a problem document.
	KindServerProtocol Kind = "ServerProtocol"
	// The signed request could not be built.
	KindSigning Kind = "Signing"
)

// Error is the error type returned by Connection operations. Problem is only
// set for KindServerProtocol.
type Error struct {
	Kind    Kind
	Message string
	Problem *resources.Problem
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "acme: " + e.Message
	if e.Problem != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Problem)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var (
	// ErrNotConnected is returned by readers when no exchange is current.
	ErrNotConnected = errors.New("acme: not connected")
	// ErrBodyConsumed is returned when a response body is read twice.
	ErrBodyConsumed = errors.New("acme: response body already consumed")
)

// IsKind reports whether err is, or wraps, an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var acmeErr *Error
	if errors.As(err, &acmeErr) {
		return acmeErr.Kind == kind
	}
	return false
}

// ProblemOf returns the problem document carried by err, if any.
func ProblemOf(err error) (*resources.Problem, bool) {
	var acmeErr *Error
	if errors.As(err, &acmeErr) && acmeErr.Problem != nil {
		return acmeErr.Problem, true
	}
	return nil, false
}

func transportError(cause error, format string, args ...interface{}) error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func protocolError(cause error, format string, args ...interface{}) error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func signingError(cause error, format string, args ...interface{}) error {
	return &Error{Kind: KindSigning, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func serverError(problem *resources.Problem) error {
	return &Error{Kind: KindServerProtocol, Message: "server problem", Problem: problem}
}
