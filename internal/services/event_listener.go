package services

import (
	"context"
	"fmt"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// EventListener fans market events out to websocket watchers and keeps the
// listing view cache honest.
type EventListener struct {
	broadcaster       domain.ListingBroadcaster
	notifier          domain.UserNotifier
	connectionManager domain.ConnectionManager
	viewCache         domain.ListingViewCache
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager, broadcaster domain.ListingBroadcaster,
	notifier domain.UserNotifier, viewCache domain.ListingViewCache, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		notifier:          notifier,
		connectionManager: connectionManager,
		viewCache:         viewCache,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToMarketEvents(ctx, el.HandleMarketEvent)
}

func (el *EventListener) HandleMarketEvent(event *domain.MarketEvent) error {
	el.log.Debug("Handling market event", "type", event.Type, "listing_id", event.ListingID)
	ctx := context.Background()

	if event.Type.Terminal() {
		return el.handleListingEnded(ctx, event)
	}

	switch event.Type {
	case domain.EventBidPlaced:
		el.invalidate(ctx, event.ListingID)
		return el.broadcaster.BroadcastToListing(ctx, event.ListingID, map[string]interface{}{
			"type":       "bid_update",
			"listing_id": event.ListingID,
			"bid_id":     event.BidID,
			"bidder_id":  event.UserID,
			"amount":     event.Amount,
			"timestamp":  event.Timestamp,
		})
	case domain.EventBidOutbid:
		el.invalidate(ctx, event.ListingID)
		return el.notifier.NotifyUser(ctx, event.UserID, map[string]interface{}{
			"type":       "outbid",
			"listing_id": event.ListingID,
			"bid_id":     event.BidID,
			"amount":     event.Amount,
			"timestamp":  event.Timestamp,
		})
	case domain.EventBidAccepted, domain.EventBidRejected:
		el.invalidate(ctx, event.ListingID)
		return el.notifier.NotifyUser(ctx, event.UserID, map[string]interface{}{
			"type":       string(event.Type),
			"listing_id": event.ListingID,
			"bid_id":     event.BidID,
			"order_id":   event.OrderID,
			"timestamp":  event.Timestamp,
		})
	case domain.EventListingUpdated:
		el.invalidate(ctx, event.ListingID)
		return el.broadcaster.BroadcastToListing(ctx, event.ListingID, map[string]interface{}{
			"type":       "listing_updated",
			"listing_id": event.ListingID,
			"timestamp":  event.Timestamp,
		})
	case domain.EventOrderPaid, domain.EventOrderCancelled:
		return el.notifier.NotifyUser(ctx, event.UserID, map[string]interface{}{
			"type":      string(event.Type),
			"order_id":  event.OrderID,
			"amount":    event.Amount,
			"timestamp": event.Timestamp,
		})
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleListingEnded(ctx context.Context, event *domain.MarketEvent) error {
	el.invalidate(ctx, event.ListingID)

	// Final broadcast
	if err := el.broadcaster.BroadcastToListing(ctx, event.ListingID, map[string]interface{}{
		"type":       "auction_ended",
		"listing_id": event.ListingID,
		"outcome":    string(event.Type),
		"winner_id":  winnerOf(event),
		"amount":     event.Amount,
		"timestamp":  event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.ListingID); err != nil {
		el.log.Error("Failed to finalize connections for listing", "listing_id",
			event.ListingID, "error", err)
		return err
	}
	return nil
}

func (el *EventListener) invalidate(ctx context.Context, listingID string) {
	if el.viewCache == nil {
		return
	}
	if err := el.viewCache.Invalidate(ctx, listingID); err != nil {
		el.log.Warn("Failed to invalidate listing view", "listing_id", listingID, "error", err)
	}
}

func winnerOf(event *domain.MarketEvent) string {
	if event.Type == domain.EventListingSold {
		return event.UserID
	}
	return ""
}
