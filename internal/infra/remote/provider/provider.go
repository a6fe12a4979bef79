// Package provider implements the transport to the remote evaluation service.
//
// HTTPProvider performs exactly one network round trip per Fetch call. It does
// not retry; retries, deadlines and caching are layered on top by the remote
// and assignment packages.
package provider

import (
	"context"
	"fmt"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// StatusCode implements retry.StatusCoder.
func (e *StatusError) StatusCode() int {
	return e.Code
}

type requestIDKey struct{}

// WithRequestID attaches a request id that is forwarded upstream.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
