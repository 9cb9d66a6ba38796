// Package indicator implements the price indicators used by the dashboard:
// exponential and simple moving averages, EMA status scoring, and
// relative-rotation metrics.
package indicator

import (
	"gttdash/internal/domain"
)

// EMAPeriods are the EMA lookbacks scored for every symbol. Each is evaluated
// independently; a 60-bar series yields EMA-10/20/50 but not EMA-200.
var EMAPeriods = []int{10, 20, 50, 200}

// EMA returns the last value of the exponential moving average of closes
// with smoothing factor 2/(period+1), seeded with the first close. ok is
// false when there are fewer than period values.
func EMA(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	alpha := 2.0 / float64(period+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = alpha*c + (1-alpha)*ema
	}
	return ema, true
}

// Status classifies price against an EMA reading.
func Status(price, ema float64, ok bool) domain.EMAStatus {
	switch {
	case !ok:
		return domain.StatusNA
	case price > ema:
		return domain.StatusAbove
	default:
		return domain.StatusBelow
	}
}

// Score computes the EMA scorecard for a series. The current price is the
// last close. An empty series yields a zero scorecard with every EMA N/A.
func Score(symbol string, series domain.PriceSeries) domain.TechnicalHealth {
	th := domain.TechnicalHealth{Symbol: symbol}
	closes := series.Closes()
	if len(closes) > 0 {
		th.CurrentPrice = closes[len(closes)-1]
	}
	th.EMAs = make([]domain.EMAReading, 0, len(EMAPeriods))
	for _, p := range EMAPeriods {
		v, ok := EMA(closes, p)
		r := domain.EMAReading{Period: p, Value: v, OK: ok, Status: Status(th.CurrentPrice, v, ok)}
		if ok {
			th.TotalEMAs++
			if r.Status == domain.StatusAbove {
				th.BullishCount++
			}
		}
		th.EMAs = append(th.EMAs, r)
	}
	return th
}
