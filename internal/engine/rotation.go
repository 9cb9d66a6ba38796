package engine

import (
	"context"
	"time"

	"gttdash/internal/domain"
	"gttdash/internal/gather"
	"gttdash/internal/indicator"
)

// RotationTail is the number of recent weekly points kept per sector.
const RotationTail = 10

// SectorRotation computes the weekly relative-rotation trail of each sector
// index against the benchmark. Sectors without enough aligned history are
// skipped.
func (e *Engine) SectorRotation(ctx context.Context) ([]domain.SectorRotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	indices := append([]domain.IndexSpec{gather.BenchmarkIndex}, gather.SectorIndices...)
	tasks := gather.IndexTasks(indices)
	series := e.seriesFor(ctx, gather.Dedupe(tasks))

	bench := series[tasks[0].Key]
	if len(bench) == 0 {
		e.log.Warn("benchmark history unavailable", "symbol", gather.BenchmarkIndex.Symbol)
		return nil, nil
	}
	benchWeekly := indicator.WeeklyBars(bench)
	benchClose := make(map[isoWeek]float64, len(benchWeekly))
	for _, b := range benchWeekly {
		benchClose[weekOf(b.Date)] = b.Close
	}

	var out []domain.SectorRotation
	for i, idx := range gather.SectorIndices {
		daily := series[tasks[i+1].Key]
		if len(daily) == 0 {
			continue
		}
		var (
			dates  []time.Time
			prices []float64
			bpx    []float64
		)
		for _, b := range indicator.WeeklyBars(daily) {
			bc, ok := benchClose[weekOf(b.Date)]
			if !ok {
				continue
			}
			dates = append(dates, b.Date)
			prices = append(prices, b.Close)
			bpx = append(bpx, bc)
		}
		points, err := indicator.Rotation(dates, prices, bpx, indicator.RotationWindow)
		if err != nil || len(points) == 0 {
			e.log.Warn("rotation skipped", "symbol", idx.Symbol, "weeks", len(dates), "error", err)
			continue
		}
		tail := points[max(0, len(points)-RotationTail):]
		latest := tail[len(tail)-1]
		out = append(out, domain.SectorRotation{
			Symbol:   idx.Symbol,
			Name:     idx.Name,
			Quadrant: indicator.Classify(latest),
			Latest:   latest,
			Tail:     tail,
		})
	}
	return out, nil
}

type isoWeek struct{ year, week int }

func weekOf(t time.Time) isoWeek {
	y, w := t.ISOWeek()
	return isoWeek{y, w}
}
