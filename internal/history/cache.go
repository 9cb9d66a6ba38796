// Package history implements the daily cache of historical price series.
// A series is fetched from the market-data provider at most once per key per
// calendar day; later reads on the same day are served from the store.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/marketdata"
	"gttdash/internal/store"
	"gttdash/internal/util"
)

// DefaultLookbackDays is how much history a cache miss fetches.
const DefaultLookbackDays = 365

// DefaultRetentionDays is how many days of entries Sweep keeps by default.
const DefaultRetentionDays = 3

// Cache is the day-keyed historical price cache.
type Cache struct {
	store    store.SeriesStore
	provider marketdata.Provider
	clock    util.Clock
	lookback int
	minRows  int
	log      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects the clock used to derive the cache day.
func WithClock(c util.Clock) Option {
	return func(h *Cache) { h.clock = c }
}

// WithLookbackDays sets how many calendar days a miss fetches.
func WithLookbackDays(days int) Option {
	return func(h *Cache) {
		if days > 0 {
			h.lookback = days
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Cache) {
		if l != nil {
			h.log = l
		}
	}
}

// New creates a Cache over s, filling misses from p.
func New(s store.SeriesStore, p marketdata.Provider, opts ...Option) *Cache {
	h := &Cache{
		store:    s,
		provider: p,
		clock:    util.SystemClock{},
		lookback: DefaultLookbackDays,
		minRows:  domain.MinSeriesRows,
		log:      slog.Default(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "history")
	return h
}

// Today returns the current cache day.
func (h *Cache) Today() string {
	return util.DayKey(h.clock.Now())
}

// keyLock returns the mutex serializing work on one cache key.
func (h *Cache) keyLock(key string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.locks[key]
	if !ok {
		m = &sync.Mutex{}
		h.locks[key] = m
	}
	return m
}

// GetSeries returns today's series for cacheKey, fetching ticker from the
// provider on a miss. label names the instrument in log lines. ok is false
// when no usable series could be produced; the reason is logged.
func (h *Cache) GetSeries(ctx context.Context, ticker, cacheKey, label string) (domain.PriceSeries, bool) {
	series, err := h.Series(ctx, ticker, cacheKey)
	if err != nil {
		h.log.Warn("series unavailable", "symbol", label, "ticker", ticker, "error", err)
		return nil, false
	}
	return series, true
}

// Series is GetSeries with the failure reason returned instead of logged.
// Failures wrap domain.ErrProviderData or are provider/transport errors.
func (h *Cache) Series(ctx context.Context, ticker, cacheKey string) (domain.PriceSeries, error) {
	day := h.Today()

	lock := h.keyLock(cacheKey)
	lock.Lock()
	defer lock.Unlock()

	if series, ok := h.loadValid(ctx, cacheKey, day); ok {
		return series, nil
	}

	series, err := h.provider.FetchDaily(ctx, ticker, h.lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if err := h.validate(ticker, series); err != nil {
		return nil, err
	}
	if err := h.store.Save(ctx, cacheKey, day, series); err != nil {
		// The series is still good for this request.
		h.log.Warn("cache write failed", "key", cacheKey, "day", day, "error", err)
	}
	h.log.Debug("series fetched", "key", cacheKey, "ticker", ticker, "rows", len(series))
	return series, nil
}

// loadValid reads today's entry. Entries that fail to decode or validate are
// deleted so the caller refetches.
func (h *Cache) loadValid(ctx context.Context, key, day string) (domain.PriceSeries, bool) {
	series, err := h.store.Load(ctx, key, day)
	if errors.Is(err, domain.ErrNotCached) {
		return nil, false
	}
	if err == nil {
		err = h.validate(key, series)
	}
	if err != nil {
		h.log.Warn("discarding cache entry", "key", key, "day", day, "error", err)
		if derr := h.store.Delete(ctx, key, day); derr != nil {
			h.log.Warn("cache delete failed", "key", key, "day", day, "error", derr)
		}
		return nil, false
	}
	return series, true
}

func (h *Cache) validate(ticker string, series domain.PriceSeries) error {
	switch {
	case len(series) == 0:
		return &domain.ProviderDataError{Ticker: ticker, Reason: "no data"}
	case len(series) < h.minRows:
		return &domain.ProviderDataError{
			Ticker: ticker,
			Reason: fmt.Sprintf("insufficient data: %d rows, need %d", len(series), h.minRows),
		}
	}
	return nil
}

// Cached reports whether today's entry for cacheKey exists.
func (h *Cache) Cached(ctx context.Context, cacheKey string) bool {
	return h.store.Exists(ctx, cacheKey, h.Today())
}

// Sweep removes entries more than keepDays calendar days old.
func (h *Cache) Sweep(ctx context.Context, keepDays int) (int, error) {
	start := time.Now()
	n, err := h.store.Sweep(ctx, h.clock.Now(), keepDays)
	if err != nil {
		return n, fmt.Errorf("sweep: %w", err)
	}
	h.log.Info("cache sweep complete", "removed", n, "keep_days", keepDays, "elapsed", time.Since(start).Round(time.Millisecond))
	return n, nil
}
