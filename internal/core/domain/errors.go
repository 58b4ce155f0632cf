package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind buckets every failure the gate can report. Rejections and input
// errors are deterministic caller defects; pool exhaustion and timeouts are
// retryable by the caller. Nothing is retried internally.
type ErrorKind string

const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindQueryRejected ErrorKind = "query_rejected"
	KindPoolExhausted ErrorKind = "pool_exhausted"
	KindTimeout       ErrorKind = "timeout"
	KindBackend       ErrorKind = "backend_error"
	KindConfiguration ErrorKind = "configuration_error"
)

// Error is the only error shape that leaves the gate. Message is sanitized
// at construction for every path that can carry driver text.
type Error struct {
	Kind    ErrorKind
	Reason  RejectReason // set for rejections and invalid input
	Target  string       // backend target name, when known
	Message string
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: target %q: %s", e.Kind, e.Target, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the gate error kind. Errors that did not originate in the
// gate count as backend errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindBackend
}

func NewTimeoutError(target string, timeout time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Target:  target,
		Message: fmt.Sprintf("statement exceeded the %s execution deadline", timeout),
	}
}

func NewPoolExhaustedError(target string, acquireTimeout time.Duration) *Error {
	return &Error{
		Kind:    KindPoolExhausted,
		Target:  target,
		Message: fmt.Sprintf("no connection available within %s", acquireTimeout),
	}
}

// NewBackendError wraps an engine-reported failure. The underlying message
// always passes through the sanitizer, even for error shapes nobody
// anticipated.
func NewBackendError(target string, err error) *Error {
	return &Error{
		Kind:    KindBackend,
		Target:  target,
		Message: Sanitize(err.Error()),
	}
}

func NewConfigError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: Sanitize(fmt.Sprintf(format, args...)),
	}
}
