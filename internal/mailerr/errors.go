// Package mailerr defines the error taxonomy shared by every anymail
// component. Each error carries a Kind that survives wrapping so the
// orchestrator can report a machine-readable outcome.
package mailerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for reporting and audit purposes.
type Kind string

const (
	KindConfig   Kind = "config_error"
	KindAuth     Kind = "auth_error"
	KindNetwork  Kind = "network_error"
	KindProtocol Kind = "protocol_error"
	KindDecode   Kind = "decode_error"
	KindLogWrite Kind = "log_write_error"
	KindInternal Kind = "internal_error"
)

// Sentinel causes. Match them with errors.Is through any wrapping.
var (
	ErrNoProfile        = errors.New("no profile configured")
	ErrAmbiguousProfile = errors.New("multiple profiles configured")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNoCredential     = errors.New("no credential stored")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrMalformedMessage = errors.New("malformed message")
	ErrTimeout          = errors.New("operation timed out")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Error is a classified error. Message is safe to show to a user and
// never contains credential material.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error wrapping cause.
func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// Config reports a profile or configuration resolution failure.
func Config(cause error, format string, args ...any) *Error {
	return New(KindConfig, cause, format, args...)
}

// Auth reports a missing or rejected credential.
func Auth(cause error, format string, args ...any) *Error {
	return New(KindAuth, cause, format, args...)
}

// Network reports a connection failure or timeout.
func Network(cause error, format string, args ...any) *Error {
	return New(KindNetwork, cause, format, args...)
}

// Protocol reports an unexpected server response, a missing folder or
// a missing UID.
func Protocol(cause error, format string, args ...any) *Error {
	return New(KindProtocol, cause, format, args...)
}

// Decode reports a message that yielded no extractable content.
func Decode(cause error, format string, args ...any) *Error {
	return New(KindDecode, cause, format, args...)
}

// LogWrite reports an audit append failure.
func LogWrite(cause error, format string, args ...any) *Error {
	return New(KindLogWrite, cause, format, args...)
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindInternal when none is present.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err (or any error in its chain) has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err. Classified errors
// report their own message; anything else falls back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
