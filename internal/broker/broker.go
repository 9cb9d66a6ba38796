// Package broker defines the brokerage session abstraction and its
// implementations: the Kite Connect REST API with an automated browser
// login, and an in-memory simulator for offline use.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gttdash/internal/config"
	"gttdash/internal/domain"
)

// Session is an authenticated brokerage session.
type Session interface {
	// Holdings returns the portfolio holdings as reported by the broker,
	// including zero-quantity entries.
	Holdings(ctx context.Context) ([]domain.Holding, error)

	// GTTOrders returns every GTT trigger regardless of status.
	GTTOrders(ctx context.Context) ([]domain.GttOrder, error)
}

// SessionProvider logs in to a brokerage and returns a Session.
type SessionProvider interface {
	// Name returns the provider identifier (e.g. "kite", "simulator").
	Name() string

	// Login performs a fresh login. Failures are *domain.SessionError and
	// are not retried.
	Login(ctx context.Context) (Session, error)
}

// New returns the SessionProvider selected by cfg.Broker.
func New(cfg *config.Config, log *slog.Logger) (SessionProvider, error) {
	switch cfg.Broker {
	case "simulator":
		return NewSimulatorProvider(nil, nil), nil
	case "", "kite":
		client := NewKiteClient(cfg.Kite.APIKey, cfg.Kite.APISecret,
			WithKiteBaseURL(cfg.Kite.BaseURL),
			WithKiteRateLimit(cfg.Kite.RateLimitPerSec),
			WithKiteLogger(log),
		)
		login := NewBrowserLogin(
			LoginURL(cfg.Kite.LoginURL, cfg.Kite.APIKey),
			cfg.Kite.UserID, cfg.Kite.Password, cfg.Kite.TOTPSecret, log,
		)
		login.Headless = cfg.Browser.Headless
		login.ExecPath = cfg.Browser.ExecPath
		login.Timeout = time.Duration(cfg.Browser.TimeoutSeconds) * time.Second
		return NewKiteProvider(client, login, log), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}
