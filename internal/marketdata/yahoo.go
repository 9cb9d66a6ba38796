package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"gttdash/internal/domain"
)

const (
	// DefaultYahooBaseURL is the Yahoo Finance chart API host.
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate (requests per second).
	DefaultRateLimit = 5
)

// Compile-time interface check.
var _ Provider = (*Yahoo)(nil)

// Yahoo implements Provider using the public Yahoo Finance v8 chart API.
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// YahooOption configures a Yahoo provider.
type YahooOption func(*Yahoo)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) YahooOption {
	return func(y *Yahoo) {
		if baseURL != "" {
			y.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.httpClient = c
	}
}

// WithProxy routes requests through the given proxy URL.
func WithProxy(proxyURL string) YahooOption {
	return func(y *Yahoo) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			y.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) YahooOption {
	return func(y *Yahoo) {
		if d > 0 {
			y.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the request rate in requests per second. Zero disables
// limiting.
func WithRateLimit(perSecond float64) YahooOption {
	return func(y *Yahoo) {
		if perSecond <= 0 {
			y.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := max(int(perSecond), 1)
		y.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) YahooOption {
	return func(y *Yahoo) {
		if l != nil {
			y.log = l
		}
	}
}

// NewYahoo creates a Yahoo provider.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL:    DefaultYahooBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(y)
	}
	y.log = y.log.With("provider", "yahoo")
	return y
}

// Name returns "yahoo".
func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// APIError is a non-200 response from the chart API.
type APIError struct {
	StatusCode int
	Ticker     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo: %s: status %d: %s", e.Ticker, e.StatusCode, e.Message)
}

// rangeFor maps a lookback in days to a chart API range parameter.
func rangeFor(days int) string {
	switch {
	case days <= 31:
		return "1mo"
	case days <= 92:
		return "3mo"
	case days <= 183:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	default:
		return "5y"
	}
}

// FetchDaily fetches daily bars for ticker. Bars whose close is null
// (holidays, halted sessions) are skipped.
func (y *Yahoo) FetchDaily(ctx context.Context, ticker string, days int) (domain.PriceSeries, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		y.baseURL, url.PathEscape(ticker), rangeFor(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	y.log.Debug("fetching chart", "ticker", ticker, "range", rangeFor(days))

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// Unknown tickers come back as 404 with a chart.error body.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Ticker: ticker, Message: truncate(string(body), 200)}
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make(domain.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue
		}
		bars = append(bars, domain.Bar{
			Date:   exchangeDate(ts, result.Meta.GMTOffset),
			Open:   value(at(quote.Open, i)),
			High:   value(at(quote.High, i)),
			Low:    value(at(quote.Low, i)),
			Close:  *c,
			Volume: value(at(quote.Volume, i)),
		})
	}
	return bars.Normalize(), nil
}

// exchangeDate converts a bar timestamp to its calendar date at the
// exchange, expressed as UTC midnight.
func exchangeDate(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
