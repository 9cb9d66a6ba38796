package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/marketdata"
	"gttdash/internal/store"
	"gttdash/internal/util"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestCache(t *testing.T) (*Cache, *marketdata.Static, *fixedClock, string) {
	t.Helper()
	dir := t.TempDir()
	clock := &fixedClock{t: time.Date(2024, 6, 14, 10, 0, 0, 0, time.Local)}
	p := marketdata.NewStatic()
	p.Now = clock.Now
	h := New(store.NewFileStore(dir, nil), p, WithClock(clock))
	return h, p, clock, dir
}

func TestKeys(t *testing.T) {
	tests := []struct {
		symbol      string
		exchange    domain.Exchange
		key, ticker string
	}{
		{"RELIANCE", domain.ExchangeNSE, "RELIANCE", "RELIANCE.NS"},
		{"SBIN", domain.ExchangeBSE, "SBIN", "SBIN"},
	}
	for _, tt := range tests {
		key, ticker := StockKey(tt.symbol, tt.exchange)
		if key != tt.key || ticker != tt.ticker {
			t.Errorf("StockKey(%s, %s) = %s, %s", tt.symbol, tt.exchange, key, ticker)
		}
	}

	for sym, want := range map[string]string{
		"^NSEI":        "INDEX_NSEI",
		"^CNXIT":       "INDEX_CNXIT",
		"NIFTY_FIN.NS": "INDEX_NIFTY_FIN_NS",
	} {
		if got := IndexKey(sym); got != want {
			t.Errorf("IndexKey(%q) = %q, want %q", sym, got, want)
		}
	}
}

func TestGetSeriesFetchesOncePerDay(t *testing.T) {
	h, p, clock, dir := newTestCache(t)
	ctx := context.Background()

	first, ok := h.GetSeries(ctx, "TCS.NS", "TCS", "TCS")
	if !ok {
		t.Fatal("first GetSeries failed")
	}
	second, ok := h.GetSeries(ctx, "TCS.NS", "TCS", "TCS")
	if !ok {
		t.Fatal("second GetSeries failed")
	}
	if p.Calls("TCS.NS") != 1 {
		t.Errorf("provider calls = %d, want 1", p.Calls("TCS.NS"))
	}
	if len(first) != len(second) || first.Last().Close != second.Last().Close {
		t.Error("cached series differs from fetched series")
	}
	if _, err := os.Stat(filepath.Join(dir, "TCS_2024-06-14.json")); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
	if !h.Cached(ctx, "TCS") {
		t.Error("Cached = false after fetch")
	}

	// A new day is a new entry.
	clock.t = clock.t.AddDate(0, 0, 1)
	if h.Cached(ctx, "TCS") {
		t.Error("Cached = true on a new day")
	}
	if _, ok := h.GetSeries(ctx, "TCS.NS", "TCS", "TCS"); !ok {
		t.Fatal("GetSeries on new day failed")
	}
	if p.Calls("TCS.NS") != 2 {
		t.Errorf("provider calls = %d, want 2", p.Calls("TCS.NS"))
	}
}

func TestGetSeriesRecoversFromCorruptEntry(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"Date": [`},
		{"missing close", `[{"Date":"2024-06-13","Open":1,"High":2,"Low":0.5,"Volume":10}]`},
		{"too few rows", `[{"Date":"2024-06-13","Close":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p, _, dir := newTestCache(t)
			path := filepath.Join(dir, "INFY_2024-06-14.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			series, ok := h.GetSeries(context.Background(), "INFY.NS", "INFY", "INFY")
			if !ok {
				t.Fatal("GetSeries failed after corruption")
			}
			if len(series) < domain.MinSeriesRows {
				t.Errorf("rows = %d", len(series))
			}
			if p.Calls("INFY.NS") != 1 {
				t.Errorf("provider calls = %d, want exactly 1 refetch", p.Calls("INFY.NS"))
			}
			// The rewritten entry is valid.
			if _, err := store.NewFileStore(dir, nil).Load(context.Background(), "INFY", "2024-06-14"); err != nil {
				t.Errorf("rewritten entry: %v", err)
			}
		})
	}
}

func TestGetSeriesRejectsBadProviderData(t *testing.T) {
	h, p, _, dir := newTestCache(t)
	ctx := context.Background()

	short := marketdata.GenerateDaily(100, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 30)
	p.Series["SHORT.NS"] = short
	p.Series["EMPTY.NS"] = domain.PriceSeries{}
	p.Errors["DOWN.NS"] = errors.New("connection refused")

	for _, ticker := range []string{"SHORT.NS", "EMPTY.NS", "DOWN.NS"} {
		if _, ok := h.GetSeries(ctx, ticker, ticker, ticker); ok {
			t.Errorf("GetSeries(%s) ok = true", ticker)
		}
	}

	_, err := h.Series(ctx, "SHORT.NS", "SHORT")
	if !errors.Is(err, domain.ErrProviderData) {
		t.Errorf("short series err = %v, want ErrProviderData", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("rejected data was cached: %d files", len(entries))
	}
}

func TestSweep(t *testing.T) {
	h, _, _, dir := newTestCache(t)
	ctx := context.Background()
	if _, ok := h.GetSeries(ctx, "TCS.NS", "TCS", "TCS"); !ok {
		t.Fatal("GetSeries failed")
	}
	old := filepath.Join(dir, util.CacheFileName("TCS", "2024-06-01", ".json"))
	if err := os.WriteFile(old, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := h.Sweep(ctx, DefaultRetentionDays)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if !h.Cached(ctx, "TCS") {
		t.Error("today's entry swept")
	}
}
