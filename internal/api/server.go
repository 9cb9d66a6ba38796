// Package api hosts the dashboard over HTTP, gRPC and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"gttdash/internal/config"
	"gttdash/internal/httpapi"
)

// ShutdownTimeout bounds graceful shutdown of the listeners.
const ShutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
	hub      *Hub
	log      *slog.Logger
}

// NewServer wires the HTTP API, the WebSocket hub at /ws and the gRPC
// Dashboard service. A zero cfg.GRPCPort disables gRPC.
func NewServer(cfg config.Server, dash httpapi.Dashboard, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	hs := httpapi.NewServer(dash, log)
	hs.Mount("GET /ws", hub)

	s := &Server{
		httpAddr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		hub:      hub,
		log:      log.With("component", "api"),
	}
	s.http = &http.Server{
		Addr:              s.httpAddr,
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.GRPCPort > 0 {
		s.grpcAddr = fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
		s.grpc = grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(s.log)))
		RegisterDashboardServer(s.grpc, NewDashboardService(dash))
	}
	return s
}

// ListenAndServe starts the HTTP and gRPC listeners and the hub, and
// blocks until ctx is cancelled or a listener fails. Listeners are shut
// down gracefully before it returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	if s.grpc != nil {
		if grpcLis, err = net.Listen("tcp", s.grpcAddr); err != nil {
			httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve runs on pre-bound listeners. grpcLis may be nil.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	if s.grpc != nil && grpcLis != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown() error {
	s.log.Info("shutting down API server")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
