package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gttdash/internal/domain"
)

const (
	// DefaultKiteBaseURL is the Kite Connect REST host.
	DefaultKiteBaseURL = "https://api.kite.trade"

	// DefaultKiteLoginURL is the Kite Connect login page.
	DefaultKiteLoginURL = "https://kite.zerodha.com/connect/login"

	kiteVersion = "3"
)

// KiteClient calls the Kite Connect REST API for one app (api key/secret).
type KiteClient struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// KiteOption configures a KiteClient.
type KiteOption func(*KiteClient)

// WithKiteBaseURL sets a custom REST base URL.
func WithKiteBaseURL(u string) KiteOption {
	return func(c *KiteClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithKiteHTTPClient sets a custom HTTP client.
func WithKiteHTTPClient(hc *http.Client) KiteOption {
	return func(c *KiteClient) { c.httpClient = hc }
}

// WithKiteRateLimit sets the request rate. Zero disables limiting.
func WithKiteRateLimit(perSecond float64) KiteOption {
	return func(c *KiteClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(int(perSecond), 1))
	}
}

// WithKiteLogger sets the logger.
func WithKiteLogger(l *slog.Logger) KiteOption {
	return func(c *KiteClient) {
		if l != nil {
			c.log = l
		}
	}
}

// NewKiteClient creates a KiteClient.
func NewKiteClient(apiKey, apiSecret string, opts ...KiteOption) *KiteClient {
	c := &KiteClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    DefaultKiteBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(3), 3),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "kite")
	return c
}

// LoginURL returns the browser login URL for this app.
func LoginURL(base, apiKey string) string {
	if base == "" {
		base = DefaultKiteLoginURL
	}
	q := url.Values{"v": {kiteVersion}, "api_key": {apiKey}}
	return base + "?" + q.Encode()
}

// Checksum returns the hex SHA-256 of api_key + request_token + api_secret.
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// kiteEnvelope is the common Kite Connect response wrapper.
type kiteEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// KiteError is an error response from the Kite API.
type KiteError struct {
	StatusCode int
	ErrorType  string
	Message    string
	Endpoint   string
}

func (e *KiteError) Error() string {
	return fmt.Sprintf("kite %s: %d %s: %s", e.Endpoint, e.StatusCode, e.ErrorType, e.Message)
}

// Expired reports whether the error means the access token is no longer
// valid.
func (e *KiteError) Expired() bool {
	return e.StatusCode == http.StatusForbidden || e.ErrorType == "TokenException"
}

// ExchangeToken trades a login request_token for an access token.
func (c *KiteClient) ExchangeToken(ctx context.Context, requestToken string) (string, error) {
	form := url.Values{
		"api_key":       {c.apiKey},
		"request_token": {requestToken},
		"checksum":      {Checksum(c.apiKey, requestToken, c.apiSecret)},
	}
	var data struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/session/token", "", strings.NewReader(form.Encode()), &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("kite /session/token: empty access token")
	}
	c.log.Info("session token issued", "user_id", data.UserID)
	return data.AccessToken, nil
}

// Session returns a KiteSession bound to accessToken.
func (c *KiteClient) Session(accessToken string) *KiteSession {
	return &KiteSession{client: c, accessToken: accessToken}
}

func (c *KiteClient) do(ctx context.Context, method, path, accessToken string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Kite-Version", kiteVersion)
	if accessToken != "" {
		req.Header.Set("Authorization", "token "+c.apiKey+":"+accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kite %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kite %s: read body: %w", path, err)
	}

	var env kiteEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &KiteError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Endpoint: path}
		}
		return fmt.Errorf("kite %s: decode: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		return &KiteError{StatusCode: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message, Endpoint: path}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("kite %s: decode data: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// KiteSession
// ---------------------------------------------------------------------------

var _ Session = (*KiteSession)(nil)

// KiteSession is an authenticated Kite Connect session.
type KiteSession struct {
	client      *KiteClient
	accessToken string
}

type kiteHolding struct {
	TradingSymbol       string   `json:"tradingsymbol"`
	Exchange            string   `json:"exchange"`
	Quantity            float64  `json:"quantity"`
	T1Quantity          float64  `json:"t1_quantity"`
	AveragePrice        float64  `json:"average_price"`
	LastPrice           float64  `json:"last_price"`
	PnL                 float64  `json:"pnl"`
	DayChange           float64  `json:"day_change"`
	DayChangePercentage float64  `json:"day_change_percentage"`
	MTF                 *kiteMTF `json:"mtf"`
}

type kiteMTF struct {
	Quantity float64 `json:"quantity"`
	Value    float64 `json:"value"`
}

type kiteGTT struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Condition struct {
		Exchange      string    `json:"exchange"`
		TradingSymbol string    `json:"tradingsymbol"`
		TriggerValues []float64 `json:"trigger_values"`
	} `json:"condition"`
	Orders []struct {
		TransactionType string  `json:"transaction_type"`
		Quantity        float64 `json:"quantity"`
		Price           float64 `json:"price"`
	} `json:"orders"`
}

// Holdings fetches GET /portfolio/holdings.
func (s *KiteSession) Holdings(ctx context.Context) ([]domain.Holding, error) {
	var raw []kiteHolding
	if err := s.client.do(ctx, http.MethodGet, "/portfolio/holdings", s.accessToken, nil, &raw); err != nil {
		return nil, s.wrap("holdings", err)
	}
	out := make([]domain.Holding, 0, len(raw))
	for _, h := range raw {
		holding := domain.Holding{
			Symbol:           h.TradingSymbol,
			Exchange:         domain.Exchange(h.Exchange),
			RegularQty:       h.Quantity + h.T1Quantity,
			AvgPrice:         h.AveragePrice,
			LastPrice:        h.LastPrice,
			PnL:              h.PnL,
			DayChange:        h.DayChange,
			DayChangePercent: h.DayChangePercentage,
		}
		if h.MTF != nil {
			holding.MTF = domain.MTFPosition{Quantity: h.MTF.Quantity, Value: h.MTF.Value}
		}
		out = append(out, holding)
	}
	return out, nil
}

// GTTOrders fetches GET /gtt/triggers.
func (s *KiteSession) GTTOrders(ctx context.Context) ([]domain.GttOrder, error) {
	var raw []kiteGTT
	if err := s.client.do(ctx, http.MethodGet, "/gtt/triggers", s.accessToken, nil, &raw); err != nil {
		return nil, s.wrap("gtt triggers", err)
	}
	out := make([]domain.GttOrder, 0, len(raw))
	for _, g := range raw {
		o := domain.GttOrder{
			ID:       g.ID,
			Status:   domain.GTTStatus(g.Status),
			Exchange: domain.Exchange(g.Condition.Exchange),
			Symbol:   g.Condition.TradingSymbol,
		}
		if tv := g.Condition.TriggerValues; len(tv) > 0 {
			o.SLTrigger = tv[0]
			if len(tv) > 1 {
				o.TargetTrigger = tv[1]
			}
		}
		if len(g.Orders) > 0 {
			o.TransactionType = g.Orders[0].TransactionType
			o.Qty = g.Orders[0].Quantity
			o.SLPrice = g.Orders[0].Price
		}
		out = append(out, o)
	}
	return out, nil
}

// wrap turns token failures into session errors.
func (s *KiteSession) wrap(op string, err error) error {
	var ke *KiteError
	if errors.As(err, &ke) && ke.Expired() {
		return &domain.SessionError{Provider: "kite", Op: op, Err: err}
	}
	return err
}
