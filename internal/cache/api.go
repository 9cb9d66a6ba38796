package cache

import (
	"context"
	"time"

	"gttdash/internal/domain"
)

// Source is the brokerage session the API cache reads through.
type Source interface {
	Holdings(ctx context.Context) ([]domain.Holding, error)
	GTTOrders(ctx context.Context) ([]domain.GttOrder, error)
}

// APICache caches holdings and GTT orders independently.
type APICache struct {
	holdings *TTL[[]domain.Holding]
	gtts     *TTL[[]domain.GttOrder]
}

// NewAPICache creates an APICache with the given TTL and clock.
func NewAPICache(ttl time.Duration, now func() time.Time) *APICache {
	return &APICache{
		holdings: NewTTL[[]domain.Holding](ttl, now),
		gtts:     NewTTL[[]domain.GttOrder](ttl, now),
	}
}

// Holdings returns the cached holdings or fetches them from src. epoch
// identifies the session src belongs to; entries from another epoch are not
// served, and fetches under a superseded epoch are not cached.
func (c *APICache) Holdings(ctx context.Context, src Source, epoch uint64) ([]domain.Holding, error) {
	return c.holdings.GetTagged(ctx, epoch, src.Holdings)
}

// GTTOrders is Holdings for GTT orders.
func (c *APICache) GTTOrders(ctx context.Context, src Source, epoch uint64) ([]domain.GttOrder, error) {
	return c.gtts.GetTagged(ctx, epoch, src.GTTOrders)
}

// Invalidate clears both entries.
func (c *APICache) Invalidate() {
	c.holdings.Invalidate()
	c.gtts.Invalidate()
}
