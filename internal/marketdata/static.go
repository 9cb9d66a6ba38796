package marketdata

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"gttdash/internal/domain"
)

var _ Provider = (*Static)(nil)

// Static serves fixed or generated data for development and tests. Tickers
// present in Series are returned as-is; tickers in Errors fail; everything
// else gets a generated weekday series derived from the ticker name.
type Static struct {
	Series map[string]domain.PriceSeries
	Errors map[string]error

	// Now anchors generated series. Zero means time.Now.
	Now func() time.Time

	mu    sync.Mutex
	calls map[string]int
}

// NewStatic returns a Static provider with no fixed data.
func NewStatic() *Static {
	return &Static{
		Series: make(map[string]domain.PriceSeries),
		Errors: make(map[string]error),
	}
}

// Name returns "static".
func (s *Static) Name() string { return "static" }

// FetchDaily returns the fixed, failing or generated series for ticker.
func (s *Static) FetchDaily(ctx context.Context, ticker string, days int) (domain.PriceSeries, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[ticker]++
	s.mu.Unlock()

	if err, ok := s.Errors[ticker]; ok {
		return nil, err
	}
	if series, ok := s.Series[ticker]; ok {
		out := make(domain.PriceSeries, len(series))
		copy(out, series)
		return out, nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return GenerateDaily(basePrice(ticker), now(), days), nil
}

// Calls returns how many times ticker has been fetched.
func (s *Static) Calls(ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[ticker]
}

// TotalCalls returns the number of fetches across all tickers.
func (s *Static) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// GenerateDaily builds a gently rising weekday series covering the days
// calendar days before end.
func GenerateDaily(base float64, end time.Time, days int) domain.PriceSeries {
	y, m, d := end.Date()
	last := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, 0, -days+1)

	var bars domain.PriceSeries
	i := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := base * (1 + float64(i)*0.001)
		bars = append(bars, domain.Bar{
			Date:   day,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1_000_000,
		})
		i++
	}
	return bars
}

func basePrice(ticker string) float64 {
	h := fnv.New32a()
	h.Write([]byte(ticker))
	return 100 + float64(h.Sum32()%4900)
}
