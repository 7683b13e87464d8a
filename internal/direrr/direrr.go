// Package direrr defines the stable error kinds shared by the core and
// the IPC protocol, per the error handling design in SPEC_FULL.md §7.
package direrr

import "errors"

// Kind is one of the stable error kinds surfaced across interfaces.
type Kind string

const (
	KindIO             Kind = "IoError"
	KindParse          Kind = "ParseError"
	KindNotFound       Kind = "NotFound"
	KindAlreadyRunning Kind = "AlreadyRunning"
	KindProtocol       Kind = "ProtocolError"
	KindBuildFailed    Kind = "BuildFailed"
)

// Error is a kinded error that can be translated directly into the IPC
// error response shape.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a kinded error with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kinded error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// reports KindIO as a conservative default.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

// NotFound reports whether err is a NotFound-kinded error.
func NotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
