// Package agentsyncerr defines the error taxonomy shared across every
// component of the synchronization core, so callers can switch on Kind
// instead of parsing messages or comparing sentinels across packages.
package agentsyncerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and logging policy. It is never part
// of a wire format.
type Kind int

const (
	Unknown Kind = iota
	ParseError
	InvariantViolation
	OverflowError
	Cancelled
	Timeout
	Transient
	PermanentBackend
	RateLimited
	SignatureInvalid
	MalformedKey
	NotSupported
	NotConnected
	Conflict
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse_error"
	case InvariantViolation:
		return "invariant_violation"
	case OverflowError:
		return "overflow_error"
	case Cancelled:
		return "cancelled"
	case Timeout:
		return "timeout"
	case Transient:
		return "transient"
	case PermanentBackend:
		return "permanent_backend"
	case RateLimited:
		return "rate_limited"
	case SignatureInvalid:
		return "signature_invalid"
	case MalformedKey:
		return "malformed_key"
	case NotSupported:
		return "not_supported"
	case NotConnected:
		return "not_connected"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the shape every component returns for a classified failure. It
// never carries secret material (keys, tokens) in Message.
type Error struct {
	Kind          Kind
	Component     string
	CorrelationID string
	Message       string
	Cause         error
}

func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s[%s] %s: %s", e.Component, e.CorrelationID, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Component, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(component string, kind Kind, correlationID, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, CorrelationID: correlationID, Message: message, Cause: cause}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the policy in spec §7 says this error kind
// should be retried with backoff.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case Transient, Timeout, RateLimited:
		return true
	default:
		return false
	}
}
