package memory

import (
	"context"
	"sync"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// EventBus is an in-process publisher/subscriber pair for single-instance
// deployments. Slow subscribers lose events rather than block publishers.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan *domain.MarketEvent
	nextID int
	buffer int
	log    logger.Logger
}

func NewEventBus(buffer int, log logger.Logger) *EventBus {
	return &EventBus{subs: make(map[int]chan *domain.MarketEvent), buffer: buffer, log: log}
}

func (b *EventBus) PublishMarketEvent(ctx context.Context, event *domain.MarketEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn("Dropping market event for slow subscriber", "type", event.Type, "listing_id", event.ListingID)
		}
	}
	return nil
}

// SubscribeToMarketEvents blocks, delivering events to handler until ctx is done.
func (b *EventBus) SubscribeToMarketEvents(ctx context.Context, handler domain.EventHandler) error {
	ch := make(chan *domain.MarketEvent, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case event := <-ch:
			if err := handler(event); err != nil {
				b.log.Error("Failed to handle event", "type", event.Type, "listing_id", event.ListingID, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishMarketEvent(ctx context.Context, event *domain.MarketEvent) error {
	return nil
}
