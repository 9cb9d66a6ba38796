package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"gttdash/internal/domain"
)

var _ Provider = (*Alpaca)(nil)

// Alpaca implements Provider using the Alpaca market-data API. It only
// covers US equities; exchange-suffixed tickers and "^" index symbols yield
// an empty series.
type Alpaca struct {
	client *marketdata.Client
	feed   string
	log    *slog.Logger
}

// NewAlpaca creates an Alpaca provider. dataURL may be empty to use the
// library default; feed is "iex" or "sip".
func NewAlpaca(apiKey, apiSecret, dataURL, feed string) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &Alpaca{
		client: marketdata.NewClient(opts),
		feed:   feed,
		log:    slog.Default().With("provider", "alpaca"),
	}
}

// Name returns "alpaca".
func (a *Alpaca) Name() string { return "alpaca" }

// Supports reports whether ticker is a plain US equity symbol.
func (a *Alpaca) Supports(ticker string) bool {
	return ticker != "" && !strings.ContainsAny(ticker, ".^")
}

// FetchDaily fetches daily bars for ticker over the last days calendar days.
func (a *Alpaca) FetchDaily(ctx context.Context, ticker string, days int) (domain.PriceSeries, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !a.Supports(ticker) {
		a.log.Debug("unsupported ticker", "ticker", ticker)
		return nil, nil
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	bars, err := a.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", ticker, err)
	}

	series := make(domain.PriceSeries, 0, len(bars))
	for _, b := range bars {
		ts := b.Timestamp.UTC()
		series = append(series, domain.Bar{
			Date:   time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return series.Normalize(), nil
}
