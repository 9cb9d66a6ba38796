package gather

import (
	"context"
	"log/slog"
	"time"

	"gttdash/internal/domain"
)

var _ Gatherer = (*IndexPrewarmer)(nil)

// IndexPrewarmer fills today's cache for a set of indices so the first
// market-health request of the day is served from disk.
type IndexPrewarmer struct {
	orch    *Orchestrator
	indices []domain.IndexSpec
	log     *slog.Logger

	// OnComplete, when set, is called after each run with the number of
	// indices fetched and how many of those failed.
	OnComplete func(fetched, failed int)
}

// NewIndexPrewarmer creates a prewarmer for indices. A nil list means
// IndexUniverse.
func NewIndexPrewarmer(orch *Orchestrator, indices []domain.IndexSpec, log *slog.Logger) *IndexPrewarmer {
	if indices == nil {
		indices = IndexUniverse
	}
	if log == nil {
		log = slog.Default()
	}
	return &IndexPrewarmer{
		orch:    orch,
		indices: indices,
		log:     log.With("gatherer", "index-prewarm"),
	}
}

// Name returns the gatherer identifier.
func (p *IndexPrewarmer) Name() string { return "index-prewarm" }

// Run fetches every index not yet cached today.
func (p *IndexPrewarmer) Run(ctx context.Context) error {
	start := time.Now()
	pending := p.orch.Pending(ctx, IndexTasks(p.indices))
	if len(pending) == 0 {
		p.log.Info("already warm", "indices", len(p.indices))
		if p.OnComplete != nil {
			p.OnComplete(0, 0)
		}
		return nil
	}

	results := p.orch.FetchAll(ctx, pending)
	failed := 0
	for _, s := range results {
		if s == nil {
			failed++
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.log.Info("prewarm complete",
		"fetched", len(pending),
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if p.OnComplete != nil {
		p.OnComplete(len(pending), failed)
	}
	return nil
}
