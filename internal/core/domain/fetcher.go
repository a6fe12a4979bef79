package domain

import (
	"context"
	"errors"
)

// ErrInvalidSubject is returned when a fetch is attempted without a subject.
var ErrInvalidSubject = errors.New("invalid subject: user is required")

// Fetcher fetches the variants assigned to a subject.
// The remote client and the caching decorator both implement it, so one can
// wrap the other.
type Fetcher interface {
	Fetch(ctx context.Context, user *User, opts *FetchOptions) (Variants, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, user *User, opts *FetchOptions) (Variants, error)

// Fetch calls f(ctx, user, opts).
func (f FetcherFunc) Fetch(ctx context.Context, user *User, opts *FetchOptions) (Variants, error) {
	return f(ctx, user, opts)
}
