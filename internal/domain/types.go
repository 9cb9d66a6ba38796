// Package domain defines the core data types shared across gttdash: broker
// holdings and GTT orders, daily price series, and the analytics records
// derived from them.
package domain

import (
	"sort"
	"time"
)

// Exchange identifies the listing venue of an instrument.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// ---------------------------------------------------------------------------
// Broker records
// ---------------------------------------------------------------------------

// MTFPosition is the margin-trading-facility component of a holding. The
// broker omits it for holdings without MTF; the zero value stands in.
type MTFPosition struct {
	Quantity float64
	Value    float64
}

// Holding is a single portfolio position as reported by the broker.
type Holding struct {
	Symbol           string
	Exchange         Exchange
	RegularQty       float64 // quantity + t1_quantity
	MTF              MTFPosition
	AvgPrice         float64
	LastPrice        float64
	PnL              float64
	DayChange        float64
	DayChangePercent float64
}

// TotalQty returns regular plus MTF quantity.
func (h Holding) TotalQty() float64 {
	return h.RegularQty + h.MTF.Quantity
}

// Investment returns the capital deployed: regular shares at average cost
// plus the MTF value reported by the broker.
func (h Holding) Investment() float64 {
	return h.RegularQty*h.AvgPrice + h.MTF.Value
}

// PnLPercent returns P&L as a percentage of Investment, or 0 when nothing is
// invested.
func (h Holding) PnLPercent() float64 {
	inv := h.Investment()
	if inv <= 0 {
		return 0
	}
	return h.PnL / inv * 100
}

// GTTStatus is the lifecycle state of a GTT trigger.
type GTTStatus string

// GTTStatusActive is the only status treated as live.
const GTTStatusActive GTTStatus = "active"

// GttOrder is a good-till-triggered stop-loss/target pair.
type GttOrder struct {
	ID              int64
	Status          GTTStatus
	Exchange        Exchange
	Symbol          string
	SLTrigger       float64
	TargetTrigger   float64 // 0 when the trigger has a single leg
	TransactionType string
	Qty             float64
	SLPrice         float64
}

// Active reports whether the order is live.
func (g GttOrder) Active() bool {
	return g.Status == GTTStatusActive
}

// LiveHoldings drops holdings whose total quantity is zero.
func LiveHoldings(holdings []Holding) []Holding {
	out := make([]Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.TotalQty() != 0 {
			out = append(out, h)
		}
	}
	return out
}

// ActiveOrders returns the orders whose status is active, in input order.
func ActiveOrders(orders []GttOrder) []GttOrder {
	out := make([]GttOrder, 0, len(orders))
	for _, o := range orders {
		if o.Active() {
			out = append(out, o)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Price series
// ---------------------------------------------------------------------------

// MinSeriesRows is the minimum number of daily bars for a series to be
// usable for technical analysis.
const MinSeriesRows = 50

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is a chronologically ordered run of daily bars.
type PriceSeries []Bar

// Closes returns the close prices in order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar. It panics on an empty series.
func (s PriceSeries) Last() Bar {
	return s[len(s)-1]
}

// Normalize sorts bars by date and drops duplicate dates, keeping the later
// occurrence of each date.
func (s PriceSeries) Normalize() PriceSeries {
	if len(s) == 0 {
		return s
	}
	sorted := make(PriceSeries, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// ---------------------------------------------------------------------------
// Analytics records
// ---------------------------------------------------------------------------

// EMAStatus describes where the current price sits relative to an EMA.
type EMAStatus string

const (
	StatusAbove EMAStatus = "Above"
	StatusBelow EMAStatus = "Below"
	StatusNA    EMAStatus = "N/A"
)

// EMAReading is a single EMA value; OK is false when there was not enough
// history to compute it.
type EMAReading struct {
	Period int
	Value  float64
	OK     bool
	Status EMAStatus
}

// TechnicalHealth is the EMA scorecard for one symbol or index.
type TechnicalHealth struct {
	Symbol       string
	Exchange     Exchange // stocks only
	Name         string   // indices only
	CurrentPrice float64
	EMAs         []EMAReading // periods 10, 20, 50, 200 in that order
	BullishCount int
	TotalEMAs    int
}

// Bullish reports whether at least half of the evaluated EMAs sit below the
// current price. Symbols with no evaluated EMA are never bullish.
func (t TechnicalHealth) Bullish() bool {
	return t.TotalEMAs > 0 && float64(t.BullishCount)/float64(t.TotalEMAs) >= 0.5
}

// EMA returns the reading for the given period.
func (t TechnicalHealth) EMA(period int) EMAReading {
	for _, r := range t.EMAs {
		if r.Period == period {
			return r
		}
	}
	return EMAReading{Period: period, Status: StatusNA}
}

// HealthSummary counts bullish and bearish entries of a technical join.
type HealthSummary struct {
	Total   int
	Bullish int
	Bearish int
}

// SummarizeHealth classifies each entry with TechnicalHealth.Bullish.
// Entries without any computed EMA count toward Total only.
func SummarizeHealth(items []TechnicalHealth) HealthSummary {
	s := HealthSummary{Total: len(items)}
	for _, it := range items {
		switch {
		case it.TotalEMAs == 0:
		case it.Bullish():
			s.Bullish++
		default:
			s.Bearish++
		}
	}
	return s
}

// RiskAnalyticsItem joins a holding with its active GTT order.
type RiskAnalyticsItem struct {
	Symbol        string
	Exchange      Exchange
	TotalQty      float64
	AvgPrice      float64
	LastPrice     float64
	Investment    float64
	SLTrigger     float64
	TargetTrigger float64
	PnL           float64
	PnLPercent    float64
	SLPercent     float64
	TargetPercent float64
	RRRatio       float64
	OpenPnLRisk   float64
	CapitalRisk   float64
}

// RiskSummary aggregates RiskAnalyticsItems across the portfolio.
type RiskSummary struct {
	TotalStocks         int
	TotalInvestment     float64
	TotalOpenRisk       float64
	TotalCapitalRisk    float64
	PositiveCapitalRisk float64
	TotalProfit         float64
}

// IndexSpec names a market index in the provider's symbology.
type IndexSpec struct {
	Symbol string
	Name   string
}

// Quadrant is a relative-rotation-graph quadrant.
type Quadrant string

const (
	QuadrantLeading   Quadrant = "Leading"
	QuadrantWeakening Quadrant = "Weakening"
	QuadrantLagging   Quadrant = "Lagging"
	QuadrantImproving Quadrant = "Improving"
)

// RotationPoint is one RS-Ratio/RS-Momentum observation.
type RotationPoint struct {
	Date       time.Time
	RSRatio    float64
	RSMomentum float64
}

// SectorRotation is the recent rotation trail of one index against a
// benchmark.
type SectorRotation struct {
	Symbol   string
	Name     string
	Quadrant Quadrant
	Latest   RotationPoint
	Tail     []RotationPoint
}
