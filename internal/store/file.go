package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/util"
)

// Compile-time interface check.
var _ SeriesStore = (*FileStore)(nil)

// Codec encodes a series to a file and back.
type Codec interface {
	// Ext is the file extension including the leading dot.
	Ext() string
	Encode(path string, series domain.PriceSeries) error
	Decode(path string) (domain.PriceSeries, error)
}

// FileStore keeps one file per (key, day) in a flat directory:
//
//	<Dir>/<KEY>_<YYYY-MM-DD><ext>
type FileStore struct {
	Dir   string
	codec Codec
}

// NewFileStore creates a FileStore rooted at dir using codec. A nil codec
// selects JSONCodec.
func NewFileStore(dir string, codec Codec) *FileStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &FileStore{Dir: dir, codec: codec}
}

// Load decodes the file for key on day.
func (s *FileStore) Load(_ context.Context, key, day string) (domain.PriceSeries, error) {
	path := s.path(key, day)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrNotCached)
		}
		return nil, err
	}
	series, err := s.codec.Decode(path)
	if err != nil {
		if errors.Is(err, domain.ErrCacheCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, filepath.Base(path), err)
	}
	return series, nil
}

// Save encodes the series to a temporary file and renames it into place so
// readers never observe a partial write.
func (s *FileStore) Save(_ context.Context, key, day string, series domain.PriceSeries) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	path := s.path(key, day)
	tmp := path + ".tmp"
	if err := s.codec.Encode(tmp, series); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// Delete removes the file for key on day.
func (s *FileStore) Delete(_ context.Context, key, day string) error {
	err := os.Remove(s.path(key, day))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether the file for key on day is present.
func (s *FileStore) Exists(_ context.Context, key, day string) bool {
	_, err := os.Stat(s.path(key, day))
	return err == nil
}

// Sweep removes cache files whose trailing date is more than keepDays days
// before today. Files without a date suffix or with another extension are
// left alone.
func (s *FileStore) Sweep(_ context.Context, today time.Time, keepDays int) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.codec.Ext()) {
			continue
		}
		_, day, ok := util.SplitDaySuffix(e.Name())
		if !ok {
			continue
		}
		if util.DaysBetween(day, today) > keepDays {
			if err := os.Remove(filepath.Join(s.Dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// path returns the cache file for key on day.
func (s *FileStore) path(key, day string) string {
	return filepath.Join(s.Dir, util.CacheFileName(key, day, s.codec.Ext()))
}

// ---------------------------------------------------------------------------
// JSON codec
// ---------------------------------------------------------------------------

// JSONCodec stores a series as a JSON list of records with Date, Open, High,
// Low, Close and Volume fields.
type JSONCodec struct{}

// Ext returns ".json".
func (JSONCodec) Ext() string { return ".json" }

// Encode writes the series as a list of records.
func (JSONCodec) Encode(path string, series domain.PriceSeries) error {
	data, err := encodeRecords(series)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Decode reads a list of records.
func (JSONCodec) Decode(path string) (domain.PriceSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeRecords(data)
}
