package broker

import (
	"context"
	"sync"

	"gttdash/internal/domain"
)

// Compile-time interface checks.
var (
	_ SessionProvider = (*SimulatorProvider)(nil)
	_ Session         = (*SimulatorSession)(nil)
)

// SimulatorProvider serves fixed holdings and GTT orders from memory. It is
// used for offline runs and tests; no external calls are made.
type SimulatorProvider struct {
	mu       sync.Mutex
	holdings []domain.Holding
	orders   []domain.GttOrder
	loginErr error
	logins   int
}

// NewSimulatorProvider creates a SimulatorProvider with the given fixtures.
// Nil fixtures use SampleHoldings and SampleGTTOrders.
func NewSimulatorProvider(holdings []domain.Holding, orders []domain.GttOrder) *SimulatorProvider {
	if holdings == nil {
		holdings = SampleHoldings()
	}
	if orders == nil {
		orders = SampleGTTOrders()
	}
	return &SimulatorProvider{holdings: holdings, orders: orders}
}

// Name returns "simulator".
func (p *SimulatorProvider) Name() string { return "simulator" }

// Login returns a session over a snapshot of the current fixtures.
func (p *SimulatorProvider) Login(_ context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++
	if p.loginErr != nil {
		return nil, &domain.SessionError{Provider: "simulator", Op: "login", Err: p.loginErr}
	}
	s := &SimulatorSession{
		holdings: append([]domain.Holding(nil), p.holdings...),
		orders:   append([]domain.GttOrder(nil), p.orders...),
	}
	return s, nil
}

// SetFixtures replaces the data served by sessions created after the call.
func (p *SimulatorProvider) SetFixtures(holdings []domain.Holding, orders []domain.GttOrder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdings = holdings
	p.orders = orders
}

// FailLogins makes subsequent logins fail with err; nil restores success.
func (p *SimulatorProvider) FailLogins(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginErr = err
}

// Logins returns the number of Login calls.
func (p *SimulatorProvider) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// SimulatorSession is a session over fixed data.
type SimulatorSession struct {
	mu       sync.Mutex
	holdings []domain.Holding
	orders   []domain.GttOrder
	calls    int
}

// Holdings returns the fixture holdings.
func (s *SimulatorSession) Holdings(_ context.Context) ([]domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]domain.Holding(nil), s.holdings...), nil
}

// GTTOrders returns the fixture GTT orders.
func (s *SimulatorSession) GTTOrders(_ context.Context) ([]domain.GttOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]domain.GttOrder(nil), s.orders...), nil
}

// Calls returns how many broker reads the session has served.
func (s *SimulatorSession) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SampleHoldings is a small NSE portfolio used by the simulator.
func SampleHoldings() []domain.Holding {
	return []domain.Holding{
		{Symbol: "RELIANCE", Exchange: domain.ExchangeNSE, RegularQty: 10, AvgPrice: 2400, LastPrice: 2550, PnL: 1500, DayChange: 12.5, DayChangePercent: 0.49},
		{Symbol: "TCS", Exchange: domain.ExchangeNSE, RegularQty: 5, AvgPrice: 3500, LastPrice: 3420, PnL: -400, DayChange: -8, DayChangePercent: -0.23},
		{Symbol: "INFY", Exchange: domain.ExchangeNSE, RegularQty: 20, MTF: domain.MTFPosition{Quantity: 10, Value: 15000}, AvgPrice: 1450, LastPrice: 1520, PnL: 2100, DayChange: 5, DayChangePercent: 0.33},
		{Symbol: "HDFCBANK", Exchange: domain.ExchangeNSE, RegularQty: 15, AvgPrice: 1600, LastPrice: 1580, PnL: -300, DayChange: -3.2, DayChangePercent: -0.2},
		{Symbol: "ITC", Exchange: domain.ExchangeNSE, RegularQty: 0, AvgPrice: 420, LastPrice: 430},
	}
}

// SampleGTTOrders are stop-loss/target triggers for most of SampleHoldings.
func SampleGTTOrders() []domain.GttOrder {
	return []domain.GttOrder{
		{ID: 101, Status: domain.GTTStatusActive, Exchange: domain.ExchangeNSE, Symbol: "RELIANCE", SLTrigger: 2300, TargetTrigger: 2800, TransactionType: "SELL", Qty: 10, SLPrice: 2295},
		{ID: 102, Status: domain.GTTStatusActive, Exchange: domain.ExchangeNSE, Symbol: "TCS", SLTrigger: 3300, TargetTrigger: 3900, TransactionType: "SELL", Qty: 5, SLPrice: 3295},
		{ID: 103, Status: domain.GTTStatusActive, Exchange: domain.ExchangeNSE, Symbol: "INFY", SLTrigger: 1400, TransactionType: "SELL", Qty: 30, SLPrice: 1395},
		{ID: 104, Status: "triggered", Exchange: domain.ExchangeNSE, Symbol: "HDFCBANK", SLTrigger: 1550, TargetTrigger: 1750, TransactionType: "SELL", Qty: 15, SLPrice: 1545},
	}
}
