package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gttdash/internal/domain"
	"gttdash/internal/gather"
)

// Dashboard is the engine surface served over HTTP.
type Dashboard interface {
	SessionActive() bool
	Refresh(ctx context.Context) error
	Holdings(ctx context.Context) ([]domain.Holding, error)
	ActiveGTTOrders(ctx context.Context) ([]domain.GttOrder, error)
	RiskAnalytics(ctx context.Context) ([]domain.RiskAnalyticsItem, domain.RiskSummary, error)
	UncoveredHoldings(ctx context.Context) ([]domain.Holding, float64, error)
	TechnicalHealth(ctx context.Context) ([]domain.TechnicalHealth, domain.HealthSummary, error)
	MarketHealth(ctx context.Context) ([]domain.TechnicalHealth, domain.HealthSummary, error)
	SectorRotation(ctx context.Context) ([]domain.SectorRotation, error)
}

// Server serves the dashboard HTTP API.
type Server struct {
	dash  Dashboard
	log   *slog.Logger
	extra map[string]http.Handler
}

// NewServer creates a Server over dash.
func NewServer(dash Dashboard, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{dash: dash, log: log.With("component", "httpapi"), extra: make(map[string]http.Handler)}
}

// Mount adds a handler for pattern alongside the API routes (e.g. the
// WebSocket endpoint).
func (s *Server) Mount(pattern string, h http.Handler) {
	s.extra[pattern] = h
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/gtt_orders", s.handleGTTOrders)
	mux.HandleFunc("GET /api/holdings", s.handleHoldings)
	mux.HandleFunc("GET /api/holdings_without_gtt", s.handleUncovered)
	mux.HandleFunc("GET /api/risk_analytics", s.handleRiskAnalytics)
	mux.HandleFunc("GET /api/technical_health", s.handleTechnicalHealth)
	mux.HandleFunc("GET /api/market_health", s.handleMarketHealth)
	mux.HandleFunc("GET /api/sector_rotation", s.handleSectorRotation)
	mux.HandleFunc("GET /api/refresh_session", s.handleRefreshSession)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
}

// Handler returns an http.Handler with request-id, logging and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return requestIDMiddleware(s.logMiddleware(corsMiddleware(mux)))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID returns the request id stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack is needed by the WebSocket upgrade.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"request_id", RequestID(r.Context()),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeFailure writes the 500 payload: the error message plus an empty
// collection, and an empty summary when the endpoint has one.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, collection string, withSummary bool, err error) {
	s.log.Warn("request failed",
		"path", r.URL.Path,
		"error", err,
		"request_id", RequestID(r.Context()),
	)
	body := map[string]any{
		"error":    err.Error(),
		collection: []any{},
	}
	if withSummary {
		body["summary"] = map[string]any{}
	}
	writeJSONStatus(w, http.StatusInternalServerError, body)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleGTTOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.dash.ActiveGTTOrders(r.Context())
	if err != nil {
		s.writeFailure(w, r, "orders", false, err)
		return
	}
	writeJSON(w, GTTOrdersPayload(orders))
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.dash.Holdings(r.Context())
	if err != nil {
		s.writeFailure(w, r, "holdings", false, err)
		return
	}
	writeJSON(w, HoldingsPayload(holdings))
}

func (s *Server) handleUncovered(w http.ResponseWriter, r *http.Request) {
	holdings, pnl, err := s.dash.UncoveredHoldings(r.Context())
	if err != nil {
		s.writeFailure(w, r, "holdings", true, err)
		return
	}
	writeJSON(w, UncoveredPayload(holdings, pnl))
}

func (s *Server) handleRiskAnalytics(w http.ResponseWriter, r *http.Request) {
	items, summary, err := s.dash.RiskAnalytics(r.Context())
	if err != nil {
		s.writeFailure(w, r, "analytics", true, err)
		return
	}
	writeJSON(w, RiskPayload(items, summary))
}

func (s *Server) handleTechnicalHealth(w http.ResponseWriter, r *http.Request) {
	items, summary, err := s.dash.TechnicalHealth(r.Context())
	if err != nil {
		s.writeFailure(w, r, "technical_health", true, err)
		return
	}
	writeJSON(w, TechnicalPayload(items, summary))
}

func (s *Server) handleMarketHealth(w http.ResponseWriter, r *http.Request) {
	items, summary, err := s.dash.MarketHealth(r.Context())
	if err != nil {
		s.writeFailure(w, r, "market_health", true, err)
		return
	}
	writeJSON(w, MarketPayload(items, summary))
}

func (s *Server) handleSectorRotation(w http.ResponseWriter, r *http.Request) {
	sectors, err := s.dash.SectorRotation(r.Context())
	if err != nil {
		s.writeFailure(w, r, "sectors", false, err)
		return
	}
	writeJSON(w, RotationPayload(gather.BenchmarkIndex.Symbol, sectors))
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Refresh(r.Context()); err != nil {
		s.log.Warn("session refresh failed", "error", err, "request_id", RequestID(r.Context()))
		writeJSONStatus(w, http.StatusInternalServerError, StatusResponse{
			Status:  "error",
			Message: "Failed to refresh session",
		})
		return
	}
	writeJSON(w, StatusResponse{Status: "success", Message: "Session refreshed successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status:        "healthy",
		SessionActive: s.dash.SessionActive(),
		Time:          time.Now().UTC().Format(time.RFC3339),
	})
}
