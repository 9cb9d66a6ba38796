// Package report renders a dashboard snapshot as terminal markdown.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gttdash/internal/gather"
	"gttdash/internal/httpapi"
)

// Snapshot is everything one report shows.
type Snapshot struct {
	Generated time.Time
	Risk      httpapi.RiskResponse
	Uncovered httpapi.UncoveredResponse
	Technical httpapi.TechnicalResponse
	Market    httpapi.MarketResponse
	Rotation  httpapi.RotationResponse
}

// Collect builds a Snapshot from a local dashboard, running the five
// queries concurrently.
func Collect(ctx context.Context, dash httpapi.Dashboard, now time.Time) (Snapshot, error) {
	snap := Snapshot{Generated: now}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, sum, err := dash.RiskAnalytics(ctx)
		if err != nil {
			return fmt.Errorf("risk analytics: %w", err)
		}
		snap.Risk = httpapi.RiskPayload(items, sum)
		return nil
	})
	g.Go(func() error {
		h, pnl, err := dash.UncoveredHoldings(ctx)
		if err != nil {
			return fmt.Errorf("uncovered holdings: %w", err)
		}
		snap.Uncovered = httpapi.UncoveredPayload(h, pnl)
		return nil
	})
	g.Go(func() error {
		items, sum, err := dash.TechnicalHealth(ctx)
		if err != nil {
			return fmt.Errorf("technical health: %w", err)
		}
		snap.Technical = httpapi.TechnicalPayload(items, sum)
		return nil
	})
	g.Go(func() error {
		items, sum, err := dash.MarketHealth(ctx)
		if err != nil {
			return fmt.Errorf("market health: %w", err)
		}
		snap.Market = httpapi.MarketPayload(items, sum)
		return nil
	})
	g.Go(func() error {
		sectors, err := dash.SectorRotation(ctx)
		if err != nil {
			return fmt.Errorf("sector rotation: %w", err)
		}
		snap.Rotation = httpapi.RotationPayload(gather.BenchmarkIndex.Symbol, sectors)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// INR formats v as rupees, e.g. "₹1,234.50".
func INR(v float64) string {
	cur := money.GetCurrency(money.INR)
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), money.INR).Display()
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

func ema(v *float64, status string) string {
	if v == nil {
		return status
	}
	return fmt.Sprintf("%s (%s)", decimal.NewFromFloat(*v).StringFixed(2), status)
}

// Markdown renders snap as a markdown document.
func Markdown(snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# GTT Dashboard\n\n_Generated %s_\n\n", snap.Generated.Format("2006-01-02 15:04"))

	rs := snap.Risk.Summary
	b.WriteString("## Risk\n\n")
	fmt.Fprintf(&b, "- Stocks covered: **%d**\n", rs.TotalStocks)
	fmt.Fprintf(&b, "- Investment: **%s**\n", INR(rs.TotalInvestment))
	fmt.Fprintf(&b, "- Open P&L at risk: **%s**\n", INR(rs.TotalOpenRisk))
	fmt.Fprintf(&b, "- Capital at risk: **%s** (positive only %s)\n", INR(rs.TotalCapitalRisk), INR(rs.PositiveCapitalRisk))
	fmt.Fprintf(&b, "- Unrealised profit: **%s**\n\n", INR(rs.TotalProfit))
	if len(snap.Risk.Analytics) > 0 {
		b.WriteString("| Symbol | Qty | Avg | LTP | SL | Target | P&L % | SL % | R:R | Capital risk |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, it := range snap.Risk.Analytics {
			fmt.Fprintf(&b, "| %s | %g | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				it.Symbol, it.TotalQty, INR(it.AvgPrice), INR(it.LastPrice), INR(it.SLTrigger), INR(it.TgtTrigger),
				pct(it.PnLPercent), pct(it.SLPercent), decimal.NewFromFloat(it.RRRatio).StringFixed(2), INR(it.CapitalRisk))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Holdings without GTT\n\n")
	if len(snap.Uncovered.Holdings) == 0 {
		b.WriteString("Every holding has an active GTT.\n\n")
	} else {
		for _, h := range snap.Uncovered.Holdings {
			fmt.Fprintf(&b, "- **%s** %g @ %s, P&L %s\n", h.Symbol, h.TotalQty, INR(h.AvgPrice), INR(h.PnL))
		}
		fmt.Fprintf(&b, "\nTotal P&L exposed: **%s**\n\n", INR(snap.Uncovered.Summary.TotalPnL))
	}

	ts := snap.Technical.Summary
	fmt.Fprintf(&b, "## Technical health (%d bullish / %d bearish)\n\n", ts.BullishStocks, ts.BearishStocks)
	healthTable(&b, snap.Technical.TechnicalHealth, false)

	ms := snap.Market.Summary
	fmt.Fprintf(&b, "## Market health (%d bullish / %d bearish)\n\n", ms.BullishIndices, ms.BearishIndices)
	healthTable(&b, snap.Market.MarketHealth, true)

	fmt.Fprintf(&b, "## Sector rotation vs %s\n\n", snap.Rotation.Benchmark)
	if len(snap.Rotation.Sectors) > 0 {
		b.WriteString("| Sector | Quadrant | RS-Ratio | RS-Momentum |\n")
		b.WriteString("|---|---|---:|---:|\n")
		for _, s := range snap.Rotation.Sectors {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", s.Name, s.Quadrant,
				decimal.NewFromFloat(s.RSRatio).StringFixed(2), decimal.NewFromFloat(s.RSMomentum).StringFixed(2))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func healthTable(b *strings.Builder, items []httpapi.HealthItemJSON, indices bool) {
	if len(items) == 0 {
		b.WriteString("No data.\n\n")
		return
	}
	label := "Symbol"
	if indices {
		label = "Index"
	}
	fmt.Fprintf(b, "| %s | Price | EMA 10 | EMA 20 | EMA 50 | EMA 200 | Score |\n", label)
	b.WriteString("|---|---:|---|---|---|---|---:|\n")
	for _, it := range items {
		name := it.Symbol
		if indices && it.Name != "" {
			name = it.Name
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %d/%d |\n", name,
			decimal.NewFromFloat(it.CurrentPrice).StringFixed(2),
			ema(it.EMA10, it.EMA10Status), ema(it.EMA20, it.EMA20Status),
			ema(it.EMA50, it.EMA50Status), ema(it.EMA200, it.EMA200Status),
			it.BullishCount, it.TotalEMAs)
	}
	b.WriteString("\n")
}

// Render renders markdown for a terminal of the given width. style is a
// glamour standard style ("dark", "light", "notty", ...).
func Render(markdown, style string, width int) (string, error) {
	if style == "" {
		style = "notty"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}
