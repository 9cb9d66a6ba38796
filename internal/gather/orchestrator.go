package gather

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gttdash/internal/domain"
)

// DefaultMaxWorkers is the concurrency ceiling for FetchAll.
const DefaultMaxWorkers = 8

// Orchestrator runs batches of series fetches concurrently.
type Orchestrator struct {
	source     SeriesSource
	maxWorkers int
	log        *slog.Logger
}

// NewOrchestrator creates an Orchestrator over source. maxWorkers <= 0 uses
// DefaultMaxWorkers.
func NewOrchestrator(source SeriesSource, maxWorkers int, log *slog.Logger) *Orchestrator {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		source:     source,
		maxWorkers: maxWorkers,
		log:        log.With("component", "orchestrator"),
	}
}

// FetchAll fetches every task and returns a map from cache key to series.
// Every task key is present; a nil series means the fetch produced nothing
// usable. One task failing never stops the others.
func (o *Orchestrator) FetchAll(ctx context.Context, tasks []Task) map[string]domain.PriceSeries {
	results := make(map[string]domain.PriceSeries, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	for _, t := range tasks {
		results[t.Key] = nil
	}

	taskCh := make(chan Task, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		okCount  atomic.Int64
		failures atomic.Int64
		runStart = time.Now()
	)

	workers := min(o.maxWorkers, len(tasks))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				if ctx.Err() != nil {
					failures.Add(1)
					continue
				}
				series, ok := o.source.GetSeries(ctx, t.Ticker, t.Key, t.Label)
				if !ok {
					failures.Add(1)
					continue
				}
				okCount.Add(1)
				mu.Lock()
				results[t.Key] = series
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	o.log.Info("fetch complete",
		"tasks", len(tasks),
		"workers", workers,
		"ok", okCount.Load(),
		"failed", failures.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return results
}

// Pending returns the tasks whose series is not yet cached today.
func (o *Orchestrator) Pending(ctx context.Context, tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if !o.source.Cached(ctx, t.Key) {
			out = append(out, t)
		}
	}
	return out
}

// Dedupe drops tasks whose key was already seen, keeping the first.
func Dedupe(tasks []Task) []Task {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.Key]; dup {
			continue
		}
		seen[t.Key] = struct{}{}
		out = append(out, t)
	}
	return out
}
