package services

import (
	"context"
	"fmt"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// mutateListing serializes fn with every other transition on listingID and
// runs it inside one atomic store scope. The locker orders callers; the
// store scope makes the writes all-or-nothing.
func mutateListing(ctx context.Context, locker domain.ListingLocker, store domain.Store, listingID string,
	fn func(tx domain.Repositories) error) error {
	unlock, err := locker.Lock(ctx, listingID)
	if err != nil {
		return fmt.Errorf("service: lock listing %s: %w", listingID, err)
	}
	defer unlock()

	return store.WithinListingTx(ctx, listingID, fn)
}

type eventEmitter struct {
	publisher domain.EventPublisher
	log       logger.Logger
}

// emit publishes after commit. Delivery is best effort: the state change has
// already happened and is not undone by a failed notification.
func (e eventEmitter) emit(ctx context.Context, events ...*domain.MarketEvent) {
	for _, event := range events {
		if err := e.publisher.PublishMarketEvent(ctx, event); err != nil {
			e.log.Error("Failed to publish market event",
				"type", event.Type, "listing_id", event.ListingID, "error", err)
		}
	}
}
