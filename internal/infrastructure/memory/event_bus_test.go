package memory

import (
	"context"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(8, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.MarketEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.SubscribeToMarketEvents(ctx, func(event *domain.MarketEvent) error {
			received <- event
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.PublishMarketEvent(ctx, &domain.MarketEvent{Type: domain.EventBidPlaced, ListingID: "l1"}))

	select {
	case ev := <-received:
		require.Equal(t, domain.EventBidPlaced, ev.Type)
		require.Equal(t, "l1", ev.ListingID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestViewCache(t *testing.T) {
	ctx := context.Background()
	c := NewViewCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	view := &domain.ListingView{Listing: &domain.Listing{ID: "l1"}, BidCount: 2}
	require.NoError(t, c.StoreView(ctx, view))

	got, ok, err := c.GetView(ctx, "l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, got.BidCount)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetView(ctx, "l1")
	require.NoError(t, err)
	require.False(t, ok, "expired entries miss")

	require.NoError(t, c.StoreView(ctx, view))
	require.NoError(t, c.Invalidate(ctx, "l1"))
	_, ok, _ = c.GetView(ctx, "l1")
	require.False(t, ok)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory("u1")
	ok, err := d.IsValidUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = d.IsValidUser(ctx, "u2")
	require.False(t, ok)
	d.Add("u2")
	ok, _ = d.IsValidUser(ctx, "u2")
	require.True(t, ok)

	open := NewOpenDirectory()
	ok, _ = open.CategoryExists(ctx, "anything")
	require.True(t, ok)
	ok, _ = open.CategoryExists(ctx, "")
	require.False(t, ok)
}
