package indicator

import (
	"errors"
	"math"
	"time"

	"gttdash/internal/domain"
)

// RotationWindow is the rolling window for RS-Ratio and RS-Momentum.
const RotationWindow = 14

// ErrInsufficientHistory is returned when a series is too short for the
// requested window.
var ErrInsufficientHistory = errors.New("not enough data for calculation")

// RollingSMA returns the trailing simple moving average of values. The first
// window-1 entries are NaN.
func RollingSMA(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if len(values) < window {
		return nil, ErrInsufficientHistory
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out, nil
}

// Rotation computes the RS-Ratio/RS-Momentum trail of prices against bench.
// Both slices must be aligned on dates. Points that fall inside the warm-up
// of either rolling window are dropped.
func Rotation(dates []time.Time, prices, bench []float64, window int) ([]domain.RotationPoint, error) {
	if len(prices) != len(bench) || len(prices) != len(dates) {
		return nil, errors.New("rotation inputs are not aligned")
	}
	rs := make([]float64, len(prices))
	for i := range prices {
		if bench[i] == 0 {
			return nil, errors.New("benchmark contains a zero price")
		}
		rs[i] = prices[i] / bench[i]
	}
	rsMean, err := RollingSMA(rs, window)
	if err != nil {
		return nil, err
	}

	// RS-Ratio is defined from index window-1 onward.
	start := window - 1
	ratio := make([]float64, 0, len(rs)-start)
	for i := start; i < len(rs); i++ {
		ratio = append(ratio, 100*rs[i]/rsMean[i])
	}
	ratioMean, err := RollingSMA(ratio, window)
	if err != nil {
		return nil, err
	}

	var points []domain.RotationPoint
	for j := window - 1; j < len(ratio); j++ {
		points = append(points, domain.RotationPoint{
			Date:       dates[start+j],
			RSRatio:    ratio[j],
			RSMomentum: 100 * ratio[j] / ratioMean[j],
		})
	}
	return points, nil
}

// Classify maps a rotation point to its quadrant around the (100, 100)
// centre.
func Classify(p domain.RotationPoint) domain.Quadrant {
	switch {
	case p.RSRatio >= 100 && p.RSMomentum >= 100:
		return domain.QuadrantLeading
	case p.RSRatio >= 100:
		return domain.QuadrantWeakening
	case p.RSMomentum >= 100:
		return domain.QuadrantImproving
	default:
		return domain.QuadrantLagging
	}
}

// WeeklyBars aggregates daily bars into ISO-week bars. Each weekly bar is
// dated by its last trading day.
func WeeklyBars(daily domain.PriceSeries) domain.PriceSeries {
	if len(daily) == 0 {
		return nil
	}
	var weekly domain.PriceSeries
	week := daily[0]
	wy, ww := week.Date.ISOWeek()
	for _, d := range daily[1:] {
		y, w := d.Date.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			wy, ww = y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
		week.Date = d.Date
	}
	return append(weekly, week)
}
