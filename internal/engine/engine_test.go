package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gttdash/internal/broker"
	"gttdash/internal/domain"
	"gttdash/internal/gather"
	"gttdash/internal/history"
	"gttdash/internal/marketdata"
	"gttdash/internal/store"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	engine   *Engine
	broker   *broker.SimulatorProvider
	provider *marketdata.Static
	events   *recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := fixedClock{t: time.Date(2024, 6, 14, 10, 0, 0, 0, time.Local)}
	md := marketdata.NewStatic()
	md.Now = clock.Now
	hc := history.New(store.NewFileStore(t.TempDir(), nil), md, history.WithClock(clock))
	sim := broker.NewSimulatorProvider(nil, nil)
	rec := &recorder{}
	e := New(Config{
		Provider:  sim,
		History:   hc,
		Clock:     clock,
		Publisher: rec,
	})
	return &testEnv{engine: e, broker: sim, provider: md, events: rec}
}

func TestRiskItemExample(t *testing.T) {
	h := domain.Holding{Symbol: "X", RegularQty: 10, AvgPrice: 100, LastPrice: 120, PnL: 200}
	g := domain.GttOrder{Symbol: "X", Status: domain.GTTStatusActive, SLTrigger: 90, TargetTrigger: 150}
	it := RiskItem(h, g)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"capital_risk", it.CapitalRisk, 100},
		{"sl_percent", it.SLPercent, 10},
		{"rr_ratio", it.RRRatio, 2},
		{"open_pnl_risk", it.OpenPnLRisk, 300},
		{"investment", it.Investment, 1000},
		{"pnl_percent", it.PnLPercent, 20},
		{"tgt_percent", it.TargetPercent, 25},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestRiskItemZeroDenominators(t *testing.T) {
	it := RiskItem(
		domain.Holding{RegularQty: 5, AvgPrice: 0, LastPrice: 0},
		domain.GttOrder{SLTrigger: 0, TargetTrigger: 10},
	)
	if it.PnLPercent != 0 || it.SLPercent != 0 || it.TargetPercent != 0 || it.RRRatio != 0 {
		t.Errorf("zero denominators produced %+v", it)
	}
	if math.IsNaN(it.RRRatio) || math.IsInf(it.TargetPercent, 0) {
		t.Error("non-finite output")
	}
}

func TestJoinRisk(t *testing.T) {
	holdings := []domain.Holding{
		{Symbol: "B", RegularQty: 10, AvgPrice: 100, LastPrice: 120, PnL: 200},
		{Symbol: "A", RegularQty: 4, MTF: domain.MTFPosition{Quantity: 6, Value: 500}, AvgPrice: 50, LastPrice: 40, PnL: -100},
		{Symbol: "ZERO", RegularQty: 0, AvgPrice: 10, LastPrice: 12},
		{Symbol: "NOGTT", RegularQty: 1, AvgPrice: 10, LastPrice: 12, PnL: 2},
	}
	orders := []domain.GttOrder{
		{ID: 1, Symbol: "B", Status: domain.GTTStatusActive, SLTrigger: 90, TargetTrigger: 150},
		{ID: 2, Symbol: "B", Status: domain.GTTStatusActive, SLTrigger: 50},
		{ID: 3, Symbol: "A", Status: domain.GTTStatusActive, SLTrigger: 55},
		{ID: 4, Symbol: "ZERO", Status: domain.GTTStatusActive, SLTrigger: 9},
		{ID: 5, Symbol: "NOGTT", Status: "triggered", SLTrigger: 9},
	}

	items, sum := JoinRisk(holdings, orders, nil)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Symbol != "B" || items[1].Symbol != "A" {
		t.Errorf("order = %s, %s; want holdings order", items[0].Symbol, items[1].Symbol)
	}
	if items[0].SLTrigger != 90 {
		t.Errorf("duplicate gtt: SL = %v, want first active (90)", items[0].SLTrigger)
	}
	// A: qty 10, capital risk (50-55)*10 = -50.
	if !approx(items[1].CapitalRisk, -50) || items[1].TotalQty != 10 {
		t.Errorf("A = %+v", items[1])
	}

	want := domain.RiskSummary{
		TotalStocks:         2,
		TotalInvestment:     1000 + 500,
		TotalOpenRisk:       300 + (40-55)*10,
		TotalCapitalRisk:    100 - 50,
		PositiveCapitalRisk: 100,
		TotalProfit:         100,
	}
	if sum != want {
		t.Errorf("summary = %+v\nwant      %+v", sum, want)
	}

	empty, s := JoinRisk(nil, nil, nil)
	if len(empty) != 0 || s.TotalStocks != 0 {
		t.Errorf("empty join = %v, %+v", empty, s)
	}
}

func TestUncoveredHoldings(t *testing.T) {
	out, pnl := UncoveredHoldings(broker.SampleHoldings(), broker.SampleGTTOrders())
	// HDFCBANK's GTT is triggered, ITC has zero quantity.
	if len(out) != 1 || out[0].Symbol != "HDFCBANK" {
		t.Fatalf("uncovered = %+v", out)
	}
	if pnl != -300 {
		t.Errorf("pnl = %v, want -300", pnl)
	}
}

func TestEngineLazyLoginAndCaching(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if env.engine.SessionActive() {
		t.Error("session active before first request")
	}
	holdings, err := env.engine.Holdings(ctx)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	for _, h := range holdings {
		if h.TotalQty() == 0 {
			t.Errorf("zero-qty holding %s returned", h.Symbol)
		}
	}
	if len(holdings) != 4 {
		t.Errorf("holdings = %d, want 4", len(holdings))
	}
	if !env.engine.SessionActive() {
		t.Error("session not active after request")
	}

	items, sum, err := env.engine.RiskAnalytics(ctx)
	if err != nil {
		t.Fatalf("RiskAnalytics: %v", err)
	}
	if len(items) != 3 || sum.TotalStocks != 3 {
		t.Errorf("risk items = %d", len(items))
	}
	orders, err := env.engine.ActiveGTTOrders(ctx)
	if err != nil || len(orders) != 3 {
		t.Errorf("active orders = %d, %v", len(orders), err)
	}
	if env.broker.Logins() != 1 {
		t.Errorf("logins = %d, want 1", env.broker.Logins())
	}
}

// blockingProvider wraps a provider and holds every login until release is
// closed.
type blockingProvider struct {
	broker.SessionProvider
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingProvider) Login(ctx context.Context) (broker.Session, error) {
	p.once.Do(func() { close(p.started) })
	<-p.release
	return p.SessionProvider.Login(ctx)
}

func TestEngineLoginDoesNotBlockReaders(t *testing.T) {
	env := newTestEnv(t)
	bp := &blockingProvider{
		SessionProvider: env.broker,
		started:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	e := New(Config{Provider: bp, History: env.engine.history, Clock: env.engine.clock})

	done := make(chan error, 1)
	go func() {
		_, err := e.Holdings(context.Background())
		done <- err
	}()
	<-bp.started

	readers := make(chan bool, 1)
	go func() {
		active := e.SessionActive()
		e.SetPublisher(&recorder{})
		e.publish(EventSessionRefreshed, nil)
		readers <- active
	}()
	select {
	case active := <-readers:
		if active {
			t.Error("session active while login is in flight")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("session state blocked behind an in-flight login")
	}

	close(bp.release)
	if err := <-done; err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if !e.SessionActive() {
		t.Error("session not active after login")
	}
}

func TestEngineRefreshDropsOldSessionResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old, oldEpoch, err := env.engine.currentSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	env.broker.SetFixtures([]domain.Holding{{Symbol: "NEW", RegularQty: 1}}, []domain.GttOrder{})
	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// A request that picked up the old session before the refresh completes
	// its fetch afterwards.
	if _, err := env.engine.api.Holdings(ctx, old, oldEpoch); err != nil {
		t.Fatal(err)
	}
	h, err := env.engine.Holdings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 || h[0].Symbol != "NEW" {
		t.Errorf("holdings after refresh = %+v, want the new session's data", h)
	}
}

func TestEngineRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Holdings(ctx); err != nil {
		t.Fatal(err)
	}
	env.broker.SetFixtures([]domain.Holding{{Symbol: "NEW", RegularQty: 1}}, []domain.GttOrder{})

	// Still served from the API cache.
	h, _ := env.engine.Holdings(ctx)
	if len(h) != 4 {
		t.Errorf("holdings before refresh = %d", len(h))
	}

	if err := env.engine.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	h, _ = env.engine.Holdings(ctx)
	if len(h) != 1 || h[0].Symbol != "NEW" {
		t.Errorf("holdings after refresh = %+v", h)
	}
	if got := env.events.types(); len(got) != 1 || got[0] != EventSessionRefreshed {
		t.Errorf("events = %v", got)
	}

	env.broker.FailLogins(errors.New("totp rejected"))
	err := env.engine.Refresh(ctx)
	if !errors.Is(err, domain.ErrSession) {
		t.Errorf("Refresh err = %v, want ErrSession", err)
	}
	if env.engine.SessionActive() {
		t.Error("session active after failed refresh")
	}
	if _, err := env.engine.Holdings(ctx); !errors.Is(err, domain.ErrSession) {
		t.Errorf("Holdings err = %v, want ErrSession", err)
	}
}

func TestTechnicalHealth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// TCS has too little history to score.
	env.provider.Series["TCS.NS"] = marketdata.GenerateDaily(3500, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 40)

	items, sum, err := env.engine.TechnicalHealth(ctx)
	if err != nil {
		t.Fatalf("TechnicalHealth: %v", err)
	}
	if len(items) != 2 || items[0].Symbol != "INFY" || items[1].Symbol != "RELIANCE" {
		t.Fatalf("items = %+v", items)
	}
	for _, it := range items {
		if it.Exchange != domain.ExchangeNSE {
			t.Errorf("%s exchange = %q", it.Symbol, it.Exchange)
		}
		if it.TotalEMAs != 4 || it.BullishCount != 4 {
			t.Errorf("%s = %d/%d bullish, want 4/4 on a rising series", it.Symbol, it.BullishCount, it.TotalEMAs)
		}
	}
	if sum != (domain.HealthSummary{Total: 2, Bullish: 2, Bearish: 0}) {
		t.Errorf("summary = %+v", sum)
	}

	calls := env.provider.TotalCalls()
	if _, _, err := env.engine.TechnicalHealth(ctx); err != nil {
		t.Fatal(err)
	}
	// Scored symbols come from the EMA cache; only TCS is retried.
	if got := env.provider.TotalCalls() - calls; got != 1 {
		t.Errorf("provider calls on second pass = %d, want 1", got)
	}
}

func TestMarketHealth(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Errors["^CNXMNC"] = errors.New("no data")

	items, sum, err := env.engine.MarketHealth(context.Background())
	if err != nil {
		t.Fatalf("MarketHealth: %v", err)
	}
	if len(items) != len(gather.IndexUniverse)-1 {
		t.Fatalf("items = %d", len(items))
	}
	for i, it := range items {
		if it.Symbol != gather.IndexUniverse[i].Symbol || it.Name != gather.IndexUniverse[i].Name {
			t.Errorf("item %d = %s %q, want universe order", i, it.Symbol, it.Name)
		}
	}
	if sum.Total != 17 || sum.Bullish+sum.Bearish > 17 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSectorRotation(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Series["^CNXREALTY"] = marketdata.GenerateDaily(500, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), 60)

	rot, err := env.engine.SectorRotation(context.Background())
	if err != nil {
		t.Fatalf("SectorRotation: %v", err)
	}
	if len(rot) != len(gather.SectorIndices)-1 {
		t.Fatalf("sectors = %d, want %d (realty skipped)", len(rot), len(gather.SectorIndices)-1)
	}
	for _, r := range rot {
		if r.Symbol == "^CNXREALTY" {
			t.Error("sector with short history not skipped")
		}
		if len(r.Tail) != RotationTail {
			t.Errorf("%s tail = %d", r.Symbol, len(r.Tail))
		}
		if r.Latest != r.Tail[len(r.Tail)-1] {
			t.Errorf("%s latest is not the last tail point", r.Symbol)
		}
	}
}

func TestPrewarmAndSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.Prewarm(ctx); err != nil {
		t.Fatalf("Prewarm: %v", err)
	}
	if got := env.provider.TotalCalls(); got != len(gather.IndexUniverse) {
		t.Errorf("provider calls = %d", got)
	}
	if _, _, err := env.engine.MarketHealth(ctx); err != nil {
		t.Fatal(err)
	}
	if got := env.provider.TotalCalls(); got != len(gather.IndexUniverse) {
		t.Errorf("market health after prewarm refetched: %d calls", got)
	}

	if _, err := env.engine.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	types := env.events.types()
	if len(types) != 2 || types[0] != EventPrewarmCompleted || types[1] != EventCacheSwept {
		t.Errorf("events = %v", types)
	}
}
