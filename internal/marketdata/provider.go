// Package marketdata fetches daily OHLCV history from third-party market-data
// providers.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gttdash/internal/config"
	"gttdash/internal/domain"
)

// Provider fetches daily bars for a provider-specific ticker.
type Provider interface {
	// Name returns the provider identifier (e.g. "yahoo", "alpaca").
	Name() string

	// FetchDaily returns roughly the last days calendar days of daily bars,
	// ascending. An empty series with a nil error means the provider had no
	// data for the ticker.
	FetchDaily(ctx context.Context, ticker string, days int) (domain.PriceSeries, error)
}

// New returns the Provider selected by md.Provider.
func New(md config.MarketData, ac config.Alpaca, log *slog.Logger) (Provider, error) {
	switch md.Provider {
	case "", "yahoo":
		return NewYahoo(
			WithBaseURL(md.BaseURL),
			WithTimeout(time.Duration(md.TimeoutSeconds)*time.Second),
			WithProxy(md.ProxyURL),
			WithRateLimit(md.RateLimitPerSec),
			WithLogger(log),
		), nil
	case "alpaca":
		return NewAlpaca(ac.APIKey, ac.APISecret, ac.DataURL, ac.Feed), nil
	case "static":
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
	}
}
