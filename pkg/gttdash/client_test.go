package gttdash

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:5000/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}

	custom := &http.Client{}
	if NewClient(baseURL, WithHTTPClient(custom)).httpClient != custom {
		t.Error("WithHTTPClient not applied")
	}
}

func TestClientDecodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/gtt_orders", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id":101,"symbol":"RELIANCE","sl_trigger":2400,"status":"active"}]`))
	})
	mux.HandleFunc("GET /api/risk_analytics", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"analytics":[{"symbol":"TCS","rr_ratio":2}],"summary":{"total_stocks":1,"total_capital_risk":100}}`))
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"healthy","session_active":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	orders, err := c.GTTOrders(ctx)
	if err != nil {
		t.Fatalf("GTTOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != 101 || orders[0].SLTrigger != 2400 {
		t.Errorf("orders = %+v", orders)
	}

	risk, err := c.RiskAnalytics(ctx)
	if err != nil {
		t.Fatalf("RiskAnalytics: %v", err)
	}
	if risk.Summary.TotalStocks != 1 || risk.Summary.TotalCapitalRisk != 100 || risk.Analytics[0].RRRatio != 2 {
		t.Errorf("risk = %+v", risk)
	}

	h, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "healthy" || !h.SessionActive {
		t.Errorf("health = %+v", h)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", 500, `{"error":"kite down","holdings":[]}`, "kite down"},
		{"message field", 500, `{"status":"error","message":"Failed to refresh session"}`, "Failed to refresh session"},
		{"plain text", 404, "404 page not found\n", "404 page not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Holdings(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}
