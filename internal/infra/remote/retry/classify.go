package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FailureClass tags why an attempt failed.
type FailureClass int

const (
	ClassNetwork FailureClass = iota
	ClassServer
	ClassRateLimited
	ClassClient
	ClassTimeout
	ClassCancelled
)

func (c FailureClass) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassServer:
		return "server"
	case ClassRateLimited:
		return "rate_limited"
	case ClassClient:
		return "client"
	case ClassTimeout:
		return "timeout"
	case ClassCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("FailureClass(%d)", int(c))
	}
}

// Retryable reports whether a failure of this class may succeed on retry.
func (c FailureClass) Retryable() bool {
	switch c {
	case ClassNetwork, ClassServer, ClassRateLimited:
		return true
	default:
		return false
	}
}

// Sentinels matched by errors.Is against an *Error of the same class.
var (
	ErrNetwork     = errors.New("retry: network failure")
	ErrServer      = errors.New("retry: server error")
	ErrRateLimited = errors.New("retry: rate limited")
	ErrClient      = errors.New("retry: client error")
	ErrTimeout     = errors.New("retry: timeout")
	ErrCancelled   = errors.New("retry: cancelled")
)

func (c FailureClass) sentinel() error {
	switch c {
	case ClassServer:
		return ErrServer
	case ClassRateLimited:
		return ErrRateLimited
	case ClassClient:
		return ErrClient
	case ClassTimeout:
		return ErrTimeout
	case ClassCancelled:
		return ErrCancelled
	default:
		return ErrNetwork
	}
}

// StatusCoder is implemented by transport errors that carry a response status.
type StatusCoder interface {
	StatusCode() int
}

// StatusCode extracts the response status from err, or 0 if there is none.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// Classify determines the failure class for a raw attempt error.
func Classify(err error) FailureClass {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}

	code := StatusCode(err)
	switch {
	case code == 0:
		// No response at all: pure transport failure.
		return ClassNetwork
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code >= 500:
		return ClassServer
	case code >= 400:
		return ClassClient
	default:
		return ClassNetwork
	}
}

// Error is the final failure surfaced by Execute.
type Error struct {
	Class      FailureClass
	Attempts   int
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Class.String() + " failure"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the class sentinel, so errors.Is(err, ErrTimeout) works.
func (e *Error) Is(target error) bool {
	return target == e.Class.sentinel()
}

// IsRetryable reports whether err is a transient failure worth retrying later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// AsError returns err as an *Error, classifying it if it is not one already.
// A nil err returns nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return newError(Classify(err), 0, err)
}

func newError(class FailureClass, attempts int, err error) *Error {
	return &Error{
		Class:      class,
		Attempts:   attempts,
		StatusCode: StatusCode(err),
		Err:        err,
	}
}
