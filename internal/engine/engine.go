// Package engine is the trading context: it owns the brokerage session, the
// API and history caches, and the fetch orchestrator, and produces the
// dashboard views (holdings, risk, technical and market health, sector
// rotation).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gttdash/internal/broker"
	"gttdash/internal/cache"
	"gttdash/internal/domain"
	"gttdash/internal/gather"
	"gttdash/internal/history"
	"gttdash/internal/util"
)

// Engine holds all per-process trading state. It is safe for concurrent use.
type Engine struct {
	provider broker.SessionProvider
	api      *cache.APICache
	history  *history.Cache
	orch     *gather.Orchestrator
	scores   *cache.Daily[domain.TechnicalHealth]
	clock    util.Clock
	pub      Publisher
	keepDays int
	log      *slog.Logger

	// loginMu serializes logins; mu guards session, epoch and pub and is
	// never held across a login.
	loginMu sync.Mutex
	mu      sync.Mutex
	session broker.Session
	epoch   uint64
}

// Config wires an Engine.
type Config struct {
	Provider      broker.SessionProvider
	History       *history.Cache
	MaxWorkers    int
	APITTL        time.Duration
	RetentionDays int
	Clock         util.Clock
	Publisher     Publisher
	Logger        *slog.Logger
}

// New creates an Engine. No login happens until the first request.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = util.SystemClock{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = history.DefaultRetentionDays
	}
	log := cfg.Logger.With("component", "engine")
	return &Engine{
		provider: cfg.Provider,
		api:      cache.NewAPICache(cfg.APITTL, cfg.Clock.Now),
		history:  cfg.History,
		orch:     gather.NewOrchestrator(cfg.History, cfg.MaxWorkers, cfg.Logger),
		scores:   cache.NewDaily[domain.TechnicalHealth](),
		clock:    cfg.Clock,
		pub:      cfg.Publisher,
		keepDays: cfg.RetentionDays,
		log:      log,
	}
}

// SetPublisher replaces the event publisher.
func (e *Engine) SetPublisher(p Publisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		p = nopPublisher{}
	}
	e.pub = p
}

func (e *Engine) publish(typ string, data map[string]any) {
	e.mu.Lock()
	pub := e.pub
	e.mu.Unlock()
	pub.Publish(Event{Type: typ, Time: e.clock.Now(), Data: data})
}

// Orchestrator returns the engine's fetch orchestrator.
func (e *Engine) Orchestrator() *gather.Orchestrator { return e.orch }

// SessionActive reports whether a brokerage session is held.
func (e *Engine) SessionActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

func (e *Engine) heldSession() (broker.Session, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.epoch
}

// currentSession returns the held session and its epoch, logging in first
// if needed. Concurrent callers wait for a single login.
func (e *Engine) currentSession(ctx context.Context) (broker.Session, uint64, error) {
	if s, epoch := e.heldSession(); s != nil {
		return s, epoch, nil
	}

	e.loginMu.Lock()
	defer e.loginMu.Unlock()
	if s, epoch := e.heldSession(); s != nil {
		return s, epoch, nil
	}
	s, err := e.provider.Login(ctx)
	if err != nil {
		e.log.Error("login failed", "provider", e.provider.Name(), "error", err)
		return nil, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = s
	return s, e.epoch, nil
}

// Refresh discards the session and cached broker responses and logs in
// again. Requests still holding the old session cannot repopulate the cache.
func (e *Engine) Refresh(ctx context.Context) error {
	e.loginMu.Lock()
	e.mu.Lock()
	e.session = nil
	e.epoch++
	e.mu.Unlock()
	e.api.Invalidate()

	s, err := e.provider.Login(ctx)
	if err == nil {
		e.mu.Lock()
		e.session = s
		e.mu.Unlock()
	}
	e.loginMu.Unlock()

	if err != nil {
		e.log.Error("session refresh failed", "provider", e.provider.Name(), "error", err)
		return err
	}
	e.log.Info("session refreshed", "provider", e.provider.Name())
	e.publish(EventSessionRefreshed, map[string]any{"provider": e.provider.Name()})
	return nil
}

// Holdings returns live holdings (total quantity non-zero).
func (e *Engine) Holdings(ctx context.Context) ([]domain.Holding, error) {
	s, epoch, err := e.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	h, err := e.api.Holdings(ctx, s, epoch)
	if err != nil {
		return nil, fmt.Errorf("fetching holdings: %w", err)
	}
	return domain.LiveHoldings(h), nil
}

// ActiveGTTOrders returns GTT orders whose status is active.
func (e *Engine) ActiveGTTOrders(ctx context.Context) ([]domain.GttOrder, error) {
	s, epoch, err := e.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := e.api.GTTOrders(ctx, s, epoch)
	if err != nil {
		return nil, fmt.Errorf("fetching gtt orders: %w", err)
	}
	return domain.ActiveOrders(orders), nil
}

// holdingsAndOrders fetches both broker views concurrently.
func (e *Engine) holdingsAndOrders(ctx context.Context) ([]domain.Holding, []domain.GttOrder, error) {
	var (
		holdings []domain.Holding
		orders   []domain.GttOrder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		holdings, err = e.Holdings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = e.ActiveGTTOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return holdings, orders, nil
}

// RiskAnalytics joins holdings with their active GTT orders.
func (e *Engine) RiskAnalytics(ctx context.Context) ([]domain.RiskAnalyticsItem, domain.RiskSummary, error) {
	holdings, orders, err := e.holdingsAndOrders(ctx)
	if err != nil {
		return nil, domain.RiskSummary{}, err
	}
	items, summary := JoinRisk(holdings, orders, e.log)
	return items, summary, nil
}

// UncoveredHoldings lists holdings with no active GTT order and their total
// P&L.
func (e *Engine) UncoveredHoldings(ctx context.Context) ([]domain.Holding, float64, error) {
	holdings, orders, err := e.holdingsAndOrders(ctx)
	if err != nil {
		return nil, 0, err
	}
	out, pnl := UncoveredHoldings(holdings, orders)
	return out, pnl, nil
}

// Prewarm fills today's cache for the index universe.
func (e *Engine) Prewarm(ctx context.Context) error {
	p := gather.NewIndexPrewarmer(e.orch, gather.IndexUniverse, e.log)
	p.OnComplete = func(fetched, failed int) {
		e.publish(EventPrewarmCompleted, map[string]any{"fetched": fetched, "failed": failed})
	}
	return p.Run(ctx)
}

// Sweep removes expired history entries and stale EMA scores.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	n, err := e.history.Sweep(ctx, e.keepDays)
	if err != nil {
		return n, err
	}
	evicted := e.scores.Evict(e.history.Today())
	e.publish(EventCacheSwept, map[string]any{"removed": n, "scores_evicted": evicted})
	return n, nil
}
