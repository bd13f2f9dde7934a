package device

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies device failures.
type ErrorKind int

const (
	// KindNotConnected covers a missing device, a closed app or a broken transport. Safe to retry.
	KindNotConnected ErrorKind = iota + 1
	// KindUserRejected means the user declined on the device. Retry only on new user action.
	KindUserRejected
	// KindTimeout means confirmation did not arrive in time or the caller gave up. Safe to retry.
	KindTimeout
	// KindMalformedResponse means the device answered with something that violates the protocol.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindUserRejected:
		return "user rejected"
	case KindTimeout:
		return "timeout"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every device call.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Sentinels for errors.Is; they match any Error of the same kind.
var (
	ErrNotConnected      = &Error{Kind: KindNotConnected}
	ErrUserRejected      = &Error{Kind: KindUserRejected}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
)

func (e *Error) Error() string {
	msg := "device: " + e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("device %s: %s", e.Op, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can use errors.Is(err, device.ErrUserRejected).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Retryable reports whether repeating the same request without user action is safe.
func (e *Error) Retryable() bool {
	return e.Kind == KindNotConnected || e.Kind == KindTimeout
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether err is a retryable device error.
func IsRetryable(err error) bool {
	var devErr *Error
	if errors.As(err, &devErr) {
		return devErr.Retryable()
	}
	return false
}

// classify maps any error coming out of a Device implementation onto the taxonomy.
func classify(op string, err error) *Error {
	var devErr *Error
	if errors.As(err, &devErr) {
		if devErr.Op == "" {
			return &Error{Kind: devErr.Kind, Op: op, Err: devErr.Err}
		}
		return devErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNotConnected, Op: op, Err: err}
}
