// Package gttdash is a Go client for the gttdash-server HTTP API.
package gttdash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gttdash/internal/httpapi"
)

// Response payloads, shared with the server.
type (
	GTTOrder          = httpapi.GTTOrderJSON
	Holding           = httpapi.HoldingJSON
	RiskResponse      = httpapi.RiskResponse
	TechnicalResponse = httpapi.TechnicalResponse
	MarketResponse    = httpapi.MarketResponse
	UncoveredResponse = httpapi.UncoveredResponse
	RotationResponse  = httpapi.RotationResponse
	StatusResponse    = httpapi.StatusResponse
	HealthResponse    = httpapi.HealthResponse
)

// Client provides a Go SDK for interacting with the gttdash-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// NewClient creates a new gttdash API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-200 response. Message carries the server's "error" or
// "message" field.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gttdash %s: status %d: %s", e.Path, e.StatusCode, e.Message)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &failure)
		msg := failure.Error
		if msg == "" {
			msg = failure.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return &APIError{StatusCode: resp.StatusCode, Path: path, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// GTTOrders returns the active GTT orders.
func (c *Client) GTTOrders(ctx context.Context) ([]GTTOrder, error) {
	var out []GTTOrder
	if err := c.get(ctx, "/api/gtt_orders", &out); err != nil {
		return out, err
	}
	return out, nil
}

// Holdings returns the live holdings.
func (c *Client) Holdings(ctx context.Context) ([]Holding, error) {
	var out []Holding
	if err := c.get(ctx, "/api/holdings", &out); err != nil {
		return out, err
	}
	return out, nil
}

// HoldingsWithoutGTT returns holdings no active GTT covers.
func (c *Client) HoldingsWithoutGTT(ctx context.Context) (UncoveredResponse, error) {
	var out UncoveredResponse
	if err := c.get(ctx, "/api/holdings_without_gtt", &out); err != nil {
		return out, err
	}
	return out, nil
}

// RiskAnalytics returns the holding/GTT risk join.
func (c *Client) RiskAnalytics(ctx context.Context) (RiskResponse, error) {
	var out RiskResponse
	if err := c.get(ctx, "/api/risk_analytics", &out); err != nil {
		return out, err
	}
	return out, nil
}

// TechnicalHealth returns EMA scorecards for GTT symbols.
func (c *Client) TechnicalHealth(ctx context.Context) (TechnicalResponse, error) {
	var out TechnicalResponse
	if err := c.get(ctx, "/api/technical_health", &out); err != nil {
		return out, err
	}
	return out, nil
}

// MarketHealth returns EMA scorecards for the index universe.
func (c *Client) MarketHealth(ctx context.Context) (MarketResponse, error) {
	var out MarketResponse
	if err := c.get(ctx, "/api/market_health", &out); err != nil {
		return out, err
	}
	return out, nil
}

// SectorRotation returns sector RRG trails.
func (c *Client) SectorRotation(ctx context.Context) (RotationResponse, error) {
	var out RotationResponse
	if err := c.get(ctx, "/api/sector_rotation", &out); err != nil {
		return out, err
	}
	return out, nil
}

// RefreshSession forces a new broker login.
func (c *Client) RefreshSession(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	if err := c.get(ctx, "/api/refresh_session", &out); err != nil {
		return out, err
	}
	return out, nil
}

// Health reports server liveness.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return out, err
	}
	return out, nil
}
