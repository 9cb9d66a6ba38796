// Package store defines storage backends for the daily price-series cache.
// Entries are keyed by (cache key, calendar day) and hold one serialized
// domain.PriceSeries.
package store

import (
	"context"
	"fmt"
	"time"

	"gttdash/internal/domain"
)

// SeriesStore persists and retrieves day-keyed price series.
type SeriesStore interface {
	// Load returns the series stored for key on day. It returns an error
	// wrapping domain.ErrNotCached when there is no entry and one wrapping
	// domain.ErrCacheCorrupt when the entry cannot be decoded.
	Load(ctx context.Context, key, day string) (domain.PriceSeries, error)

	// Save writes the series for key on day, replacing any existing entry.
	Save(ctx context.Context, key, day string, series domain.PriceSeries) error

	// Delete removes the entry for key on day. Missing entries are not an
	// error.
	Delete(ctx context.Context, key, day string) error

	// Exists reports whether an entry for key on day is present.
	Exists(ctx context.Context, key, day string) bool

	// Sweep deletes entries dated more than keepDays calendar days before
	// today and returns how many were removed.
	Sweep(ctx context.Context, today time.Time, keepDays int) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Open returns the SeriesStore named by backend: "json" or "parquet" for a
// FileStore in dir, "sqlite" for a SQLiteStore at sqlitePath.
func Open(backend, dir, sqlitePath string) (SeriesStore, error) {
	switch backend {
	case "", "json":
		return NewFileStore(dir, JSONCodec{}), nil
	case "parquet":
		return NewFileStore(dir, ParquetCodec{}), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
