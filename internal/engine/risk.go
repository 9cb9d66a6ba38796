package engine

import (
	"log/slog"

	"gttdash/internal/domain"
)

// GTTBySymbol indexes active orders by symbol. When a symbol has more than
// one active order the first one wins and the rest are logged.
func GTTBySymbol(orders []domain.GttOrder, log *slog.Logger) map[string]domain.GttOrder {
	out := make(map[string]domain.GttOrder)
	for _, o := range orders {
		if !o.Active() {
			continue
		}
		if first, dup := out[o.Symbol]; dup {
			if log != nil {
				log.Warn("duplicate active gtt ignored",
					"symbol", o.Symbol, "kept_id", first.ID, "ignored_id", o.ID)
			}
			continue
		}
		out[o.Symbol] = o
	}
	return out
}

// RiskItem computes the risk metrics of one holding against its GTT.
// Ratios with a zero denominator are reported as 0.
func RiskItem(h domain.Holding, g domain.GttOrder) domain.RiskAnalyticsItem {
	qty := h.TotalQty()
	avg, last, sl, tgt := h.AvgPrice, h.LastPrice, g.SLTrigger, g.TargetTrigger

	it := domain.RiskAnalyticsItem{
		Symbol:        h.Symbol,
		Exchange:      h.Exchange,
		TotalQty:      qty,
		AvgPrice:      avg,
		LastPrice:     last,
		Investment:    qty * avg,
		SLTrigger:     sl,
		TargetTrigger: tgt,
		PnL:           h.PnL,
		OpenPnLRisk:   (last - sl) * qty,
		CapitalRisk:   (avg - sl) * qty,
	}
	if it.Investment > 0 {
		it.PnLPercent = h.PnL / it.Investment * 100
	}
	if avg != 0 {
		it.SLPercent = (avg - sl) / avg * 100
	}
	if last != 0 {
		it.TargetPercent = (tgt - last) / last * 100
	}
	if avg != sl {
		it.RRRatio = (last - avg) / (avg - sl)
	}
	return it
}

// JoinRisk pairs every live holding with its active GTT order and returns
// the per-holding metrics in holdings order plus the portfolio summary.
// Holdings without an active GTT are left out.
func JoinRisk(holdings []domain.Holding, orders []domain.GttOrder, log *slog.Logger) ([]domain.RiskAnalyticsItem, domain.RiskSummary) {
	gtts := GTTBySymbol(orders, log)
	items := make([]domain.RiskAnalyticsItem, 0, len(gtts))
	for _, h := range domain.LiveHoldings(holdings) {
		g, ok := gtts[h.Symbol]
		if !ok {
			continue
		}
		items = append(items, RiskItem(h, g))
	}
	return items, SummarizeRisk(items)
}

// SummarizeRisk totals a risk join.
func SummarizeRisk(items []domain.RiskAnalyticsItem) domain.RiskSummary {
	s := domain.RiskSummary{TotalStocks: len(items)}
	for _, it := range items {
		s.TotalInvestment += it.Investment
		s.TotalOpenRisk += it.OpenPnLRisk
		s.TotalCapitalRisk += it.CapitalRisk
		if it.CapitalRisk > 0 {
			s.PositiveCapitalRisk += it.CapitalRisk
		}
		s.TotalProfit += it.PnL
	}
	return s
}

// UncoveredHoldings returns the live holdings that have no active GTT order
// and their combined P&L.
func UncoveredHoldings(holdings []domain.Holding, orders []domain.GttOrder) ([]domain.Holding, float64) {
	gtts := GTTBySymbol(orders, nil)
	var (
		out []domain.Holding
		pnl float64
	)
	for _, h := range domain.LiveHoldings(holdings) {
		if _, ok := gtts[h.Symbol]; ok {
			continue
		}
		out = append(out, h)
		pnl += h.PnL
	}
	return out, pnl
}
