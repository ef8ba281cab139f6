package memory

import (
	"context"
	"sync"
	"time"

	"auction-settlement/internal/domain"
)

type cachedView struct {
	view      domain.ListingView
	expiresAt time.Time
}

// ViewCache keeps listing projections for ttl. A zero ttl disables caching.
type ViewCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	views map[string]cachedView
	now   func() time.Time
}

func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{ttl: ttl, views: make(map[string]cachedView), now: time.Now}
}

func (c *ViewCache) GetView(ctx context.Context, listingID string) (*domain.ListingView, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cv, ok := c.views[listingID]
	if !ok || c.now().After(cv.expiresAt) {
		return nil, false, nil
	}
	view := cv.view
	return &view, true, nil
}

func (c *ViewCache) StoreView(ctx context.Context, view *domain.ListingView) error {
	if c.ttl <= 0 || view == nil || view.Listing == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[view.Listing.ID] = cachedView{view: *view, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *ViewCache) Invalidate(ctx context.Context, listingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, listingID)
	return nil
}
