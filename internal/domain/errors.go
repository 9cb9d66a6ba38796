package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrSession marks a failure to obtain or use a brokerage session.
	ErrSession = errors.New("brokerage session unavailable")

	// ErrProviderData marks empty, malformed or insufficient market data.
	ErrProviderData = errors.New("insufficient market data")

	// ErrCacheCorrupt marks a cache entry that exists but cannot be used.
	ErrCacheCorrupt = errors.New("corrupt cache entry")

	// ErrNotCached is returned by stores when no entry exists for a key/day.
	ErrNotCached = errors.New("cache entry not found")
)

// SessionError reports an authentication or login failure. It is surfaced
// to callers as-is and never retried automatically.
type SessionError struct {
	Provider string
	Op       string
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *SessionError) Unwrap() []error {
	return []error{ErrSession, e.Err}
}

// ProviderDataError reports why a market-data fetch was rejected for one
// symbol.
type ProviderDataError struct {
	Ticker string
	Reason string
}

func (e *ProviderDataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Ticker, e.Reason)
}

func (e *ProviderDataError) Unwrap() error {
	return ErrProviderData
}
