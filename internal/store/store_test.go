package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/util"
)

func testSeries(n int) domain.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.PriceSeries, n)
	for i := range s {
		p := 100 + float64(i)
		s[i] = domain.Bar{
			Date:   base.AddDate(0, 0, i),
			Open:   p - 0.5,
			High:   p + 1,
			Low:    p - 1,
			Close:  p,
			Volume: 1000 + float64(i),
		}
	}
	return s
}

func assertSeriesEqual(t *testing.T, got, want domain.PriceSeries) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || got[i].Close != want[i].Close ||
			got[i].Open != want[i].Open || got[i].Volume != want[i].Volume {
			t.Fatalf("bar %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStorePath(t *testing.T) {
	fs := NewFileStore("/data", nil)
	want := filepath.Join("/data", "RELIANCE_2024-06-15.json")
	if got := fs.path("RELIANCE", "2024-06-15"); got != want {
		t.Errorf("path mismatch:\n  got  %s\n  want %s", got, want)
	}

	ps := NewFileStore("/data", ParquetCodec{})
	want = filepath.Join("/data", "INDEX_NSEI_2024-06-15.parquet")
	if got := ps.path("INDEX_NSEI", "2024-06-15"); got != want {
		t.Errorf("path mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, ParquetCodec{}} {
		t.Run(codec.Ext(), func(t *testing.T) {
			ctx := context.Background()
			s := NewFileStore(t.TempDir(), codec)
			want := testSeries(60)

			if s.Exists(ctx, "TCS", "2024-06-15") {
				t.Fatal("Exists before Save")
			}
			if _, err := s.Load(ctx, "TCS", "2024-06-15"); !errors.Is(err, domain.ErrNotCached) {
				t.Fatalf("Load before Save err = %v, want ErrNotCached", err)
			}
			if err := s.Save(ctx, "TCS", "2024-06-15", want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if !s.Exists(ctx, "TCS", "2024-06-15") {
				t.Fatal("Exists after Save = false")
			}
			got, err := s.Load(ctx, "TCS", "2024-06-15")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSeriesEqual(t, got, want)

			if err := s.Delete(ctx, "TCS", "2024-06-15"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if s.Exists(ctx, "TCS", "2024-06-15") {
				t.Error("Exists after Delete")
			}
			if err := s.Delete(ctx, "TCS", "2024-06-15"); err != nil {
				t.Errorf("second Delete: %v", err)
			}
		})
	}
}

func TestJSONCodecCorruptEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{not json`},
		{"empty list", `[]`},
		{"missing close", `[{"Date":"2024-01-01","Open":1,"High":2,"Low":0.5,"Volume":10}]`},
		{"bad date", `[{"Date":"yesterday","Close":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewFileStore(dir, JSONCodec{})
			path := filepath.Join(dir, "BAD_2024-06-15.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := s.Load(context.Background(), "BAD", "2024-06-15")
			if !errors.Is(err, domain.ErrCacheCorrupt) {
				t.Errorf("Load err = %v, want ErrCacheCorrupt", err)
			}
		})
	}
}

func TestJSONCodecReadsTimestampRecords(t *testing.T) {
	// Timestamp dates, out of order and with an extra column.
	content := `[
		{"Date": "2024-01-03 00:00:00", "Open": 11, "High": 12, "Low": 10, "Close": 11.5, "Adj Close": 11.5, "Volume": 300},
		{"Date": "2024-01-02 00:00:00", "Open": 10, "High": 11, "Low": 9, "Close": 10.5, "Adj Close": 10.5, "Volume": 200}
	]`
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "X_2024-01-03.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileStore(dir, nil).Load(context.Background(), "X", "2024-01-03")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Close != 10.5 || got[1].Close != 11.5 {
		t.Errorf("series = %+v", got)
	}
	if got[0].Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("first date = %v", got[0].Date)
	}
}

func TestFileStoreSweep(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, JSONCodec{})
	today, _ := util.ParseDayKey("2024-06-15")

	// Today and three days back are kept; four days back and older go.
	// Names without a date suffix, other extensions and temp files stay.
	names := []string{
		"A_2024-06-15.json",
		"A_2024-06-12.json",
		"A_2024-06-11.json",
		"INDEX_NSEI_2024-05-01.json",
		"README.json",
		"B_2024-05-01.parquet",
		"C_2024-05-01.json.tmp",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Sweep(context.Background(), today, 3)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	for _, n := range []string{"A_2024-06-15.json", "A_2024-06-12.json", "README.json", "B_2024-05-01.parquet", "C_2024-05-01.json.tmp"} {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s should survive sweep: %v", n, err)
		}
	}

	// Sweeping a directory that does not exist yet is a no-op.
	if n, err := NewFileStore(filepath.Join(dir, "missing"), nil).Sweep(context.Background(), today, 3); err != nil || n != 0 {
		t.Errorf("Sweep(missing) = %d, %v", n, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache", "series.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	want := testSeries(55)
	if _, err := s.Load(ctx, "INFY", "2024-06-15"); !errors.Is(err, domain.ErrNotCached) {
		t.Fatalf("Load before Save err = %v", err)
	}
	if err := s.Save(ctx, "INFY", "2024-06-15", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Upsert on the same key/day.
	if err := s.Save(ctx, "INFY", "2024-06-15", want); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := s.Load(ctx, "INFY", "2024-06-15")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSeriesEqual(t, got, want)

	if err := s.Save(ctx, "INFY", "2024-06-01", want); err != nil {
		t.Fatal(err)
	}
	today, _ := util.ParseDayKey("2024-06-15")
	removed, err := s.Sweep(ctx, today, 3)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if !s.Exists(ctx, "INFY", "2024-06-15") || s.Exists(ctx, "INFY", "2024-06-01") {
		t.Error("Sweep removed the wrong rows")
	}

	if err := s.Delete(ctx, "INFY", "2024-06-15"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(ctx, "INFY", "2024-06-15") {
		t.Error("Exists after Delete")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"json", "parquet", "sqlite"} {
		s, err := Open(backend, dir, filepath.Join(dir, "c.db"))
		if err != nil {
			t.Fatalf("Open(%q): %v", backend, err)
		}
		s.Close()
	}
	if _, err := Open("redis", dir, ""); err == nil {
		t.Error("Open(redis) should fail")
	}
}
