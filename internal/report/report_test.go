package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gttdash/internal/broker"
	"gttdash/internal/domain"
	"gttdash/internal/engine"
	"gttdash/internal/history"
	"gttdash/internal/httpapi"
	"gttdash/internal/marketdata"
	"gttdash/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestINR(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "₹1,234.50"},
		{0, "₹0.00"},
		{-300, "-₹300.00"},
		{99.999, "₹100.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, INR(tt.in), "INR(%v)", tt.in)
	}
}

func TestMarkdown(t *testing.T) {
	v := 101.256
	snap := Snapshot{
		Generated: time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC),
		Risk: httpapi.RiskResponse{
			Analytics: []httpapi.RiskItemJSON{{Symbol: "TCS", TotalQty: 10, AvgPrice: 100, SLTrigger: 90, RRRatio: 2}},
			Summary:   httpapi.RiskSummaryJSON{TotalStocks: 1, TotalInvestment: 1000},
		},
		Technical: httpapi.TechnicalResponse{
			TechnicalHealth: []httpapi.HealthItemJSON{{
				Symbol: "TCS", CurrentPrice: 120, EMA10: &v, EMA10Status: "Above",
				EMA200Status: "N/A", BullishCount: 1, TotalEMAs: 1,
			}},
			Summary: httpapi.TechnicalSummaryJSON{TotalStocks: 1, BullishStocks: 1},
		},
		Market: httpapi.MarketResponse{
			MarketHealth: []httpapi.HealthItemJSON{{Symbol: "^NSEI", Name: "Nifty 50", CurrentPrice: 22000}},
		},
		Rotation: httpapi.RotationResponse{
			Benchmark: "^NSEI",
			Sectors:   []httpapi.SectorJSON{{Name: "Nifty IT", Quadrant: "Leading", RSRatio: 101.5, RSMomentum: 100.25}},
		},
	}
	md := Markdown(snap)

	for _, want := range []string{
		"_Generated 2024-06-14 09:30_",
		"- Investment: **₹1,000.00**",
		"| TCS | 10 | ₹100.00 |",
		"101.26 (Above)",
		"| N/A |",
		"| Nifty 50 |",
		"Every holding has an active GTT.",
		"## Sector rotation vs ^NSEI",
		"| Nifty IT | Leading | 101.50 | 100.25 |",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRender(t *testing.T) {
	out, err := Render("# GTT Dashboard\n\n- one\n", "notty", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "GTT Dashboard")
	assert.Contains(t, out, "one")
}

func TestCollect(t *testing.T) {
	clock := fixedClock{t: time.Date(2024, 6, 14, 10, 0, 0, 0, time.Local)}
	md := marketdata.NewStatic()
	md.Now = clock.Now
	hc := history.New(store.NewFileStore(t.TempDir(), nil), md, history.WithClock(clock))
	sim := broker.NewSimulatorProvider(nil, nil)
	e := engine.New(engine.Config{Provider: sim, History: hc, Clock: clock})

	snap, err := Collect(context.Background(), e, clock.Now())
	require.NoError(t, err)
	assert.Len(t, snap.Risk.Analytics, 3)
	assert.Len(t, snap.Uncovered.Holdings, 1)
	assert.Len(t, snap.Market.MarketHealth, 18)
	assert.Equal(t, "^NSEI", snap.Rotation.Benchmark)

	out := Markdown(snap)
	assert.True(t, strings.Contains(out, "HDFCBANK"), "uncovered holding listed")

	sim.FailLogins(errors.New("totp rejected"))
	require.Error(t, e.Refresh(context.Background()))
	_, err = Collect(context.Background(), e, clock.Now())
	assert.ErrorIs(t, err, domain.ErrSession)
}
