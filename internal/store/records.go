package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gttdash/internal/domain"
)

// seriesRecord is the list-of-records row written to JSON cache entries.
// Pointer fields distinguish a missing column from a zero value.
type seriesRecord struct {
	Date   string   `json:"Date"`
	Open   *float64 `json:"Open,omitempty"`
	High   *float64 `json:"High,omitempty"`
	Low    *float64 `json:"Low,omitempty"`
	Close  *float64 `json:"Close"`
	Volume *float64 `json:"Volume,omitempty"`
}

// dateLayouts lists the date encodings accepted on read, so cache files
// written by other tools with a timestamp column still load.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

func parseBarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func encodeRecords(series domain.PriceSeries) ([]byte, error) {
	records := make([]seriesRecord, len(series))
	for i, b := range series {
		records[i] = seriesRecord{
			Date:   b.Date.Format("2006-01-02"),
			Open:   &b.Open,
			High:   &b.High,
			Low:    &b.Low,
			Close:  &b.Close,
			Volume: &b.Volume,
		}
	}
	return json.Marshal(records)
}

// decodeRecords parses a list-of-records payload. Any row without a Close
// value or with an unparseable date makes the whole payload corrupt. The
// result is sorted ascending with duplicate dates collapsed.
func decodeRecords(data []byte) (domain.PriceSeries, error) {
	var records []seriesRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheCorrupt, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty", domain.ErrCacheCorrupt)
	}
	series := make(domain.PriceSeries, 0, len(records))
	for i, r := range records {
		if r.Close == nil {
			return nil, fmt.Errorf("%w: row %d has no Close", domain.ErrCacheCorrupt, i)
		}
		date, err := parseBarDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrCacheCorrupt, i, err)
		}
		series = append(series, domain.Bar{
			Date:   date,
			Open:   deref(r.Open),
			High:   deref(r.High),
			Low:    deref(r.Low),
			Close:  *r.Close,
			Volume: deref(r.Volume),
		})
	}
	return series.Normalize(), nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
