package engine

import (
	"context"
	"sort"

	"gttdash/internal/domain"
	"gttdash/internal/gather"
	"gttdash/internal/history"
	"gttdash/internal/indicator"
)

// seriesFor returns the series for each task: uncached keys are fanned out
// through the orchestrator, cached keys are read back from the history
// cache. Missing series are nil.
func (e *Engine) seriesFor(ctx context.Context, tasks []gather.Task) map[string]domain.PriceSeries {
	fetched := e.orch.FetchAll(ctx, e.orch.Pending(ctx, tasks))
	out := make(map[string]domain.PriceSeries, len(tasks))
	for _, t := range tasks {
		if s, done := fetched[t.Key]; done {
			out[t.Key] = s
			continue
		}
		if s, ok := e.history.GetSeries(ctx, t.Ticker, t.Key, t.Label); ok {
			out[t.Key] = s
		} else {
			out[t.Key] = nil
		}
	}
	return out
}

// scoresFor returns today's EMA scorecard per task key, computing and caching
// those not already scored. Keys without a usable series are absent.
func (e *Engine) scoresFor(ctx context.Context, tasks []gather.Task) map[string]domain.TechnicalHealth {
	day := e.history.Today()
	out := make(map[string]domain.TechnicalHealth, len(tasks))

	var missing []gather.Task
	for _, t := range tasks {
		if th, ok := e.scores.Get(t.Key, day); ok {
			out[t.Key] = th
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return out
	}

	for key, series := range e.seriesFor(ctx, missing) {
		if len(series) == 0 {
			continue
		}
		th := indicator.Score(key, series)
		e.scores.Put(key, day, th)
		out[key] = th
	}
	return out
}

// TechnicalHealth scores every symbol with an active GTT order. Results are
// sorted by symbol; symbols without usable history are skipped.
func (e *Engine) TechnicalHealth(ctx context.Context) ([]domain.TechnicalHealth, domain.HealthSummary, error) {
	orders, err := e.ActiveGTTOrders(ctx)
	if err != nil {
		return nil, domain.HealthSummary{}, err
	}

	type instrument struct {
		symbol   string
		exchange domain.Exchange
		key      string
	}
	var (
		instruments []instrument
		tasks       []gather.Task
		seen        = make(map[string]bool)
	)
	for _, o := range orders {
		if seen[o.Symbol] {
			continue
		}
		seen[o.Symbol] = true
		key, ticker := history.StockKey(o.Symbol, o.Exchange)
		instruments = append(instruments, instrument{symbol: o.Symbol, exchange: o.Exchange, key: key})
		tasks = append(tasks, gather.Task{Key: key, Ticker: ticker, Label: o.Symbol})
	}

	scores := e.scoresFor(ctx, gather.Dedupe(tasks))
	items := make([]domain.TechnicalHealth, 0, len(instruments))
	for _, in := range instruments {
		th, ok := scores[in.key]
		if !ok {
			continue
		}
		th.Symbol = in.symbol
		th.Exchange = in.exchange
		items = append(items, th)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	return items, domain.SummarizeHealth(items), nil
}

// MarketHealth scores the index universe in universe order. Indices without
// usable history are skipped.
func (e *Engine) MarketHealth(ctx context.Context) ([]domain.TechnicalHealth, domain.HealthSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.HealthSummary{}, err
	}
	tasks := gather.IndexTasks(gather.IndexUniverse)
	scores := e.scoresFor(ctx, tasks)

	items := make([]domain.TechnicalHealth, 0, len(tasks))
	for i, idx := range gather.IndexUniverse {
		th, ok := scores[tasks[i].Key]
		if !ok {
			continue
		}
		th.Symbol = idx.Symbol
		th.Name = idx.Name
		items = append(items, th)
	}
	return items, domain.SummarizeHealth(items), nil
}
