// Package gather fans historical series fetches out over a bounded worker
// pool and pre-warms the daily cache for the index universe.
package gather

import (
	"context"

	"gttdash/internal/domain"
)

// Gatherer is the interface for background data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// SeriesSource is the daily series cache the orchestrator reads through.
type SeriesSource interface {
	GetSeries(ctx context.Context, ticker, cacheKey, label string) (domain.PriceSeries, bool)
	Cached(ctx context.Context, cacheKey string) bool
}

// Task is one series to fetch.
type Task struct {
	Key    string // cache key
	Ticker string // provider ticker
	Label  string // display name for logs
}
