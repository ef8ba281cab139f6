package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/clock"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.MarketEvent
}

func (p *recordingPublisher) PublishMarketEvent(ctx context.Context, event *domain.MarketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t domain.MarketEventType) []*domain.MarketEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.MarketEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store      *memory.Store
	locker     *memory.KeyedLocker
	users      *memory.Directory
	events     *recordingPublisher
	clock      *clock.Manual
	listings   *ListingService
	bids       *BidService
	acceptance *AcceptanceService
	orders     *OrderService
	sweeper    *ExpirySweeper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewNop()
	h := &harness{
		store:  memory.NewStore(),
		locker: memory.NewKeyedLocker(),
		users:  memory.NewDirectory("seller1", "seller2", "alice", "bob", "carol"),
		events: &recordingPublisher{},
		clock:  clock.NewManual(t0),
	}
	categories := memory.NewDirectory("cat1")
	h.listings = NewListingService(h.store, h.locker, categories, h.users, nil, h.events, dec("5"), log)
	h.bids = NewBidService(h.store, h.locker, h.users, h.events, log)
	h.acceptance = NewAcceptanceService(h.store, h.locker, h.events, log)
	h.orders = NewOrderService(h.store, h.locker, h.events, log)
	h.sweeper = NewExpirySweeper(h.store, h.locker, h.events, memory.NewLocalLeader(), h.clock,
		"test-instance", time.Minute, log)
	return h
}

// openListing creates an ACTIVE listing by seller1 ending an hour after t0.
func (h *harness) openListing(t *testing.T, startingPrice, increment string) *domain.Listing {
	t.Helper()
	inc := dec(increment)
	listing, err := h.listings.CreateListing(context.Background(), CreateListingInput{
		SellerID:      "seller1",
		CategoryID:    "cat1",
		Title:         "Vintage camera",
		StartingPrice: dec(startingPrice),
		MinIncrement:  &inc,
		AuctionEndAt:  t0.Add(time.Hour),
	}, t0)
	require.NoError(t, err)
	return listing
}

func (h *harness) bid(t *testing.T, listingID, bidderID, amount string, at time.Time) *domain.Bid {
	t.Helper()
	b, err := h.bids.PlaceBid(context.Background(), listingID, bidderID, dec(amount), at)
	require.NoError(t, err)
	return b
}

func (h *harness) bidStatus(t *testing.T, bidID string) domain.BidStatus {
	t.Helper()
	b, err := h.store.Bids().GetBid(context.Background(), bidID)
	require.NoError(t, err)
	return b.Status
}

func (h *harness) listingStatus(t *testing.T, listingID string) domain.ListingStatus {
	t.Helper()
	l, err := h.store.Listings().GetListing(context.Background(), listingID)
	require.NoError(t, err)
	return l.Status
}
