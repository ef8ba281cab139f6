package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisListingLocker_ExclusiveWithTimeout(t *testing.T) {
	client, mr := newClient(t)
	locker := NewRedisListingLocker(client, time.Minute, 60*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "l1")
	require.NoError(t, err)
	require.True(t, mr.Exists(lockKey("l1")))

	_, err = locker.Lock(ctx, "l1")
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	other, err := locker.Lock(ctx, "l2")
	require.NoError(t, err)
	other()

	unlock()
	require.False(t, mr.Exists(lockKey("l1")))

	again, err := locker.Lock(ctx, "l1")
	require.NoError(t, err)
	again()
}

func TestRedisListingLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	client, mr := newClient(t)
	locker := NewRedisListingLocker(client, time.Second, 60*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "l1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	current, err := locker.Lock(ctx, "l1")
	require.NoError(t, err)

	stale()
	require.True(t, mr.Exists(lockKey("l1")))
	current()
	require.False(t, mr.Exists(lockKey("l1")))
}

func TestRedisListingLocker_Serializes(t *testing.T) {
	client, _ := newClient(t)
	locker := NewRedisListingLocker(client, time.Minute, 5*time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		peak    int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "l1")
			if err != nil {
				return
			}
			mu.Lock()
			holders++
			if holders > peak {
				peak = holders
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, peak)
}

func TestRedisListingLocker_ContextCancelled(t *testing.T) {
	client, _ := newClient(t)
	locker := NewRedisListingLocker(client, time.Minute, time.Minute)

	unlock, err := locker.Lock(context.Background(), "l1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "l1")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRedisEvents_PublishSubscribe(t *testing.T) {
	client, mr := newClient(t)
	publisher := NewEventPublisher(client, "")
	subscriber := NewRedisEventSubscriber(client, "", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.MarketEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.SubscribeToMarketEvents(ctx, func(event *domain.MarketEvent) error {
			received <- event
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultEventChannel)[DefaultEventChannel] == 1
	}, time.Second, 5*time.Millisecond)

	// malformed payloads are skipped
	mr.Publish(DefaultEventChannel, "not json")

	amount := decimal.RequireFromString("110.50")
	require.NoError(t, publisher.PublishMarketEvent(context.Background(), &domain.MarketEvent{
		Type: domain.EventBidPlaced, ListingID: "l1", BidID: "b1", UserID: "alice",
		Amount: &amount, Timestamp: t0,
	}))

	select {
	case event := <-received:
		require.Equal(t, domain.EventBidPlaced, event.Type)
		require.Equal(t, "l1", event.ListingID)
		require.Equal(t, "alice", event.UserID)
		require.True(t, event.Amount.Equal(amount))
		require.True(t, event.Timestamp.Equal(t0))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestParseEventData(t *testing.T) {
	_, err := parseEventData(`{"type":"bid_placed"}`)
	require.Error(t, err)

	event, err := parseEventData(`{"type":"listing_expired","listing_id":"l1","timestamp":"2026-03-01T12:00:00Z"}`)
	require.NoError(t, err)
	require.Equal(t, domain.EventListingExpired, event.Type)
	require.Nil(t, event.Amount)
}

func TestRedisViewCache(t *testing.T) {
	client, mr := newClient(t)
	cache := NewRedisViewCache(client, 30*time.Second)
	ctx := context.Background()

	_, ok, err := cache.GetView(ctx, "l1")
	require.NoError(t, err)
	require.False(t, ok)

	highest := decimal.RequireFromString("120.00")
	listing := &domain.Listing{
		ID: "l1", SellerID: "seller1", CategoryID: "cat1", Title: "Camera",
		StartingPrice: decimal.NewFromInt(100), MinIncrement: decimal.NewFromInt(5),
		AuctionEndAt: t0.Add(time.Hour), Status: domain.ListingActive, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, cache.StoreView(ctx, &domain.ListingView{Listing: listing, HighestBid: &highest, BidCount: 3}))

	view, ok, err := cache.GetView(ctx, "l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Camera", view.Listing.Title)
	require.True(t, view.Listing.StartingPrice.Equal(listing.StartingPrice))
	require.True(t, view.Listing.AuctionEndAt.Equal(listing.AuctionEndAt))
	require.True(t, view.HighestBid.Equal(highest))
	require.Equal(t, 3, view.BidCount)

	require.NoError(t, cache.Invalidate(ctx, "l1"))
	_, ok, err = cache.GetView(ctx, "l1")
	require.NoError(t, err)
	require.False(t, ok)

	// no bids yet, then expiry
	require.NoError(t, cache.StoreView(ctx, &domain.ListingView{Listing: listing}))
	view, ok, err = cache.GetView(ctx, "l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, view.HighestBid)

	mr.FastForward(time.Minute)
	_, ok, err = cache.GetView(ctx, "l1")
	require.NoError(t, err)
	require.False(t, ok)
}
