// Package httpapi serves the dashboard JSON API. The payload builders here
// are shared with the gRPC service and the terminal report so all three
// present identical numbers.
package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"gttdash/internal/domain"
)

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// GTTOrderJSON is one active GTT order.
type GTTOrderJSON struct {
	ID         int64   `json:"id"`
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	SLTrigger  float64 `json:"sl_trigger"`
	TgtTrigger float64 `json:"tgt_trigger"`
	Type       string  `json:"type"`
	Qty        float64 `json:"qty"`
	SLPrice    float64 `json:"sl_price"`
	Status     string  `json:"status"`
}

// HoldingJSON is one live holding.
type HoldingJSON struct {
	Symbol           string  `json:"symbol"`
	Exchange         string  `json:"exchange"`
	RegularQty       float64 `json:"regular_qty"`
	MTFQty           float64 `json:"mtf_qty"`
	TotalQty         float64 `json:"total_qty"`
	AvgPrice         float64 `json:"avg_price"`
	LastPrice        float64 `json:"last_price"`
	Investment       float64 `json:"investment"`
	PnL              float64 `json:"pnl"`
	PnLPercent       float64 `json:"pnl_percent"`
	DayChange        float64 `json:"day_change"`
	DayChangePercent float64 `json:"day_change_percent"`
}

// RiskItemJSON is one row of the risk join.
type RiskItemJSON struct {
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	TotalQty    float64 `json:"total_qty"`
	AvgPrice    float64 `json:"avg_price"`
	LastPrice   float64 `json:"last_price"`
	Investment  float64 `json:"investment"`
	SLTrigger   float64 `json:"sl_trigger"`
	TgtTrigger  float64 `json:"tgt_trigger"`
	PnL         float64 `json:"pnl"`
	PnLPercent  float64 `json:"pnl_percent"`
	SLPercent   float64 `json:"sl_percent"`
	TgtPercent  float64 `json:"tgt_percent"`
	RRRatio     float64 `json:"rr_ratio"`
	OpenPnLRisk float64 `json:"open_pnl_risk"`
	CapitalRisk float64 `json:"capital_risk"`
}

// RiskSummaryJSON totals the risk join.
type RiskSummaryJSON struct {
	TotalStocks         int     `json:"total_stocks"`
	TotalInvestment     float64 `json:"total_investment"`
	TotalOpenRisk       float64 `json:"total_open_risk"`
	TotalCapitalRisk    float64 `json:"total_capital_risk"`
	PositiveCapitalRisk float64 `json:"positive_capital_risk"`
	TotalProfit         float64 `json:"total_profit"`
}

// RiskResponse is the /api/risk_analytics payload.
type RiskResponse struct {
	Analytics []RiskItemJSON  `json:"analytics"`
	Summary   RiskSummaryJSON `json:"summary"`
}

// HealthItemJSON is an EMA scorecard. Stocks carry Exchange, indices carry
// Name. Absent EMAs are null.
type HealthItemJSON struct {
	Symbol       string   `json:"symbol"`
	Exchange     string   `json:"exchange,omitempty"`
	Name         string   `json:"name,omitempty"`
	CurrentPrice float64  `json:"current_price"`
	EMA10        *float64 `json:"ema_10"`
	EMA10Status  string   `json:"ema_10_status"`
	EMA20        *float64 `json:"ema_20"`
	EMA20Status  string   `json:"ema_20_status"`
	EMA50        *float64 `json:"ema_50"`
	EMA50Status  string   `json:"ema_50_status"`
	EMA200       *float64 `json:"ema_200"`
	EMA200Status string   `json:"ema_200_status"`
	BullishCount int      `json:"bullish_count"`
	TotalEMAs    int      `json:"total_emas"`
}

// TechnicalSummaryJSON counts bullish and bearish stocks.
type TechnicalSummaryJSON struct {
	TotalStocks   int `json:"total_stocks"`
	BullishStocks int `json:"bullish_stocks"`
	BearishStocks int `json:"bearish_stocks"`
}

// TechnicalResponse is the /api/technical_health payload.
type TechnicalResponse struct {
	TechnicalHealth []HealthItemJSON     `json:"technical_health"`
	Summary         TechnicalSummaryJSON `json:"summary"`
}

// MarketSummaryJSON counts bullish and bearish indices.
type MarketSummaryJSON struct {
	TotalIndices   int `json:"total_indices"`
	BullishIndices int `json:"bullish_indices"`
	BearishIndices int `json:"bearish_indices"`
}

// MarketResponse is the /api/market_health payload.
type MarketResponse struct {
	MarketHealth []HealthItemJSON  `json:"market_health"`
	Summary      MarketSummaryJSON `json:"summary"`
}

// UncoveredResponse is the /api/holdings_without_gtt payload.
type UncoveredResponse struct {
	Holdings []HoldingJSON `json:"holdings"`
	Summary  struct {
		TotalStocks int     `json:"total_stocks"`
		TotalPnL    float64 `json:"total_pnl"`
	} `json:"summary"`
}

// RotationPointJSON is one weekly RRG point.
type RotationPointJSON struct {
	Date       string  `json:"date"`
	RSRatio    float64 `json:"rs_ratio"`
	RSMomentum float64 `json:"rs_momentum"`
}

// SectorJSON is one sector's rotation trail.
type SectorJSON struct {
	Symbol     string              `json:"symbol"`
	Name       string              `json:"name"`
	Quadrant   string              `json:"quadrant"`
	RSRatio    float64             `json:"rs_ratio"`
	RSMomentum float64             `json:"rs_momentum"`
	Tail       []RotationPointJSON `json:"tail"`
}

// RotationResponse is the /api/sector_rotation payload.
type RotationResponse struct {
	Benchmark string       `json:"benchmark"`
	Sectors   []SectorJSON `json:"sectors"`
}

// StatusResponse is the /api/refresh_session payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status        string `json:"status"`
	SessionActive bool   `json:"session_active"`
	Time          string `json:"time"`
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

// GTTOrdersPayload formats active orders.
func GTTOrdersPayload(orders []domain.GttOrder) []GTTOrderJSON {
	out := make([]GTTOrderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, GTTOrderJSON{
			ID:         o.ID,
			Exchange:   string(o.Exchange),
			Symbol:     o.Symbol,
			SLTrigger:  o.SLTrigger,
			TgtTrigger: o.TargetTrigger,
			Type:       o.TransactionType,
			Qty:        o.Qty,
			SLPrice:    o.SLPrice,
			Status:     string(o.Status),
		})
	}
	return out
}

// HoldingsPayload formats live holdings.
func HoldingsPayload(holdings []domain.Holding) []HoldingJSON {
	out := make([]HoldingJSON, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, HoldingJSON{
			Symbol:           h.Symbol,
			Exchange:         string(h.Exchange),
			RegularQty:       h.RegularQty,
			MTFQty:           h.MTF.Quantity,
			TotalQty:         h.TotalQty(),
			AvgPrice:         Round2(h.AvgPrice),
			LastPrice:        Round2(h.LastPrice),
			Investment:       Round2(h.Investment()),
			PnL:              Round2(h.PnL),
			PnLPercent:       Round2(h.PnLPercent()),
			DayChange:        Round2(h.DayChange),
			DayChangePercent: Round2(h.DayChangePercent),
		})
	}
	return out
}

// RiskPayload formats a risk join.
func RiskPayload(items []domain.RiskAnalyticsItem, s domain.RiskSummary) RiskResponse {
	resp := RiskResponse{
		Analytics: make([]RiskItemJSON, 0, len(items)),
		Summary: RiskSummaryJSON{
			TotalStocks:         s.TotalStocks,
			TotalInvestment:     Round2(s.TotalInvestment),
			TotalOpenRisk:       Round2(s.TotalOpenRisk),
			TotalCapitalRisk:    Round2(s.TotalCapitalRisk),
			PositiveCapitalRisk: Round2(s.PositiveCapitalRisk),
			TotalProfit:         Round2(s.TotalProfit),
		},
	}
	for _, it := range items {
		resp.Analytics = append(resp.Analytics, RiskItemJSON{
			Symbol:      it.Symbol,
			Exchange:    string(it.Exchange),
			TotalQty:    it.TotalQty,
			AvgPrice:    Round2(it.AvgPrice),
			LastPrice:   Round2(it.LastPrice),
			Investment:  Round2(it.Investment),
			SLTrigger:   Round2(it.SLTrigger),
			TgtTrigger:  Round2(it.TargetTrigger),
			PnL:         Round2(it.PnL),
			PnLPercent:  Round2(it.PnLPercent),
			SLPercent:   Round2(it.SLPercent),
			TgtPercent:  Round2(it.TargetPercent),
			RRRatio:     Round2(it.RRRatio),
			OpenPnLRisk: Round2(it.OpenPnLRisk),
			CapitalRisk: Round2(it.CapitalRisk),
		})
	}
	return resp
}

func healthItem(th domain.TechnicalHealth) HealthItemJSON {
	item := HealthItemJSON{
		Symbol:       th.Symbol,
		Exchange:     string(th.Exchange),
		Name:         th.Name,
		CurrentPrice: Round2(th.CurrentPrice),
		BullishCount: th.BullishCount,
		TotalEMAs:    th.TotalEMAs,
	}
	set := func(period int, v **float64, status *string) {
		r := th.EMA(period)
		*status = string(r.Status)
		if r.OK {
			x := Round2(r.Value)
			*v = &x
		}
	}
	set(10, &item.EMA10, &item.EMA10Status)
	set(20, &item.EMA20, &item.EMA20Status)
	set(50, &item.EMA50, &item.EMA50Status)
	set(200, &item.EMA200, &item.EMA200Status)
	return item
}

// TechnicalPayload formats the stock technical join.
func TechnicalPayload(items []domain.TechnicalHealth, s domain.HealthSummary) TechnicalResponse {
	resp := TechnicalResponse{
		TechnicalHealth: make([]HealthItemJSON, 0, len(items)),
		Summary:         TechnicalSummaryJSON{TotalStocks: s.Total, BullishStocks: s.Bullish, BearishStocks: s.Bearish},
	}
	for _, th := range items {
		resp.TechnicalHealth = append(resp.TechnicalHealth, healthItem(th))
	}
	return resp
}

// MarketPayload formats the index technical join.
func MarketPayload(items []domain.TechnicalHealth, s domain.HealthSummary) MarketResponse {
	resp := MarketResponse{
		MarketHealth: make([]HealthItemJSON, 0, len(items)),
		Summary:      MarketSummaryJSON{TotalIndices: s.Total, BullishIndices: s.Bullish, BearishIndices: s.Bearish},
	}
	for _, th := range items {
		th.Exchange = ""
		resp.MarketHealth = append(resp.MarketHealth, healthItem(th))
	}
	return resp
}

// UncoveredPayload formats holdings without an active GTT.
func UncoveredPayload(holdings []domain.Holding, pnl float64) UncoveredResponse {
	resp := UncoveredResponse{Holdings: HoldingsPayload(holdings)}
	resp.Summary.TotalStocks = len(holdings)
	resp.Summary.TotalPnL = Round2(pnl)
	return resp
}

// RotationPayload formats sector rotation trails.
func RotationPayload(benchmark string, sectors []domain.SectorRotation) RotationResponse {
	resp := RotationResponse{Benchmark: benchmark, Sectors: make([]SectorJSON, 0, len(sectors))}
	for _, s := range sectors {
		sj := SectorJSON{
			Symbol:     s.Symbol,
			Name:       s.Name,
			Quadrant:   string(s.Quadrant),
			RSRatio:    Round2(s.Latest.RSRatio),
			RSMomentum: Round2(s.Latest.RSMomentum),
			Tail:       make([]RotationPointJSON, 0, len(s.Tail)),
		}
		for _, p := range s.Tail {
			sj.Tail = append(sj.Tail, RotationPointJSON{
				Date:       p.Date.Format(time.DateOnly),
				RSRatio:    Round2(p.RSRatio),
				RSMomentum: Round2(p.RSMomentum),
			})
		}
		resp.Sectors = append(resp.Sectors, sj)
	}
	return resp
}
