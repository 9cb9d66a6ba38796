package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/util"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SeriesStore = (*SQLiteStore)(nil)

// SQLiteStore implements SeriesStore in a single SQLite table. Payloads use
// the same list-of-records JSON as the file cache.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series_cache (
			cache_key  TEXT    NOT NULL,
			day        TEXT    NOT NULL,
			payload    BLOB    NOT NULL,
			row_count  INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (cache_key, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_cache_day ON series_cache(day)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads and decodes the payload for key on day.
func (s *SQLiteStore) Load(ctx context.Context, key, day string) (domain.PriceSeries, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM series_cache WHERE cache_key = ? AND day = ?`, key, day,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", key, day, domain.ErrNotCached)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecords(payload)
}

// Save upserts the payload for key on day.
func (s *SQLiteStore) Save(ctx context.Context, key, day string, series domain.PriceSeries) error {
	payload, err := encodeRecords(series)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO series_cache (cache_key, day, payload, row_count, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key, day) DO UPDATE SET payload = excluded.payload, row_count = excluded.row_count, created_at = excluded.created_at`,
		key, day, payload, len(series), time.Now().Unix(),
	)
	return err
}

// Delete removes the row for key on day.
func (s *SQLiteStore) Delete(ctx context.Context, key, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM series_cache WHERE cache_key = ? AND day = ?`, key, day)
	return err
}

// Exists reports whether a row for key on day is present.
func (s *SQLiteStore) Exists(ctx context.Context, key, day string) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM series_cache WHERE cache_key = ? AND day = ?`, key, day,
	).Scan(&n)
	return err == nil && n > 0
}

// Sweep deletes rows dated more than keepDays days before today. Days are
// stored as YYYY-MM-DD so lexical order is chronological.
func (s *SQLiteStore) Sweep(ctx context.Context, today time.Time, keepDays int) (int, error) {
	cutoff := util.DayKey(today.AddDate(0, 0, -keepDays))
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM series_cache WHERE day < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
