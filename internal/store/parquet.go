package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"gttdash/internal/domain"
)

// Compile-time interface check.
var _ Codec = ParquetCodec{}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for one daily bar.
type BarRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// ParquetCodec stores a series as a single Parquet file of BarRecords.
type ParquetCodec struct{}

// Ext returns ".parquet".
func (ParquetCodec) Ext() string { return ".parquet" }

// Encode writes the series as BarRecords.
func (ParquetCodec) Encode(path string, series domain.PriceSeries) error {
	records := make([]BarRecord, len(series))
	for i, b := range series {
		records[i] = BarRecord{
			Date:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return writeParquetFile(path, records)
}

// Decode reads BarRecords back into a normalized series.
func (ParquetCodec) Decode(path string) (domain.PriceSeries, error) {
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheCorrupt, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty", domain.ErrCacheCorrupt)
	}
	series := make(domain.PriceSeries, len(records))
	for i, r := range records {
		series[i] = domain.Bar{
			Date:   time.UnixMilli(r.Date).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return series.Normalize(), nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
