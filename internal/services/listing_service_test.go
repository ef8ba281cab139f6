package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/domain/mocks"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestListingService_CreateListing_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	negative := dec("-1")
	valid := func() CreateListingInput {
		return CreateListingInput{
			SellerID:      "seller1",
			CategoryID:    "cat1",
			Title:         "Desk lamp",
			StartingPrice: dec("20"),
			AuctionEndAt:  t0.Add(time.Hour),
		}
	}

	tests := []struct {
		name   string
		mutate func(in *CreateListingInput)
		field  string
	}{
		{"missing_seller", func(in *CreateListingInput) { in.SellerID = "" }, "seller_id"},
		{"unknown_seller", func(in *CreateListingInput) { in.SellerID = "nobody" }, "seller_id"},
		{"unknown_category", func(in *CreateListingInput) { in.CategoryID = "cat9" }, "category_id"},
		{"blank_title", func(in *CreateListingInput) { in.Title = "   " }, "title"},
		{"zero_price", func(in *CreateListingInput) { in.StartingPrice = decimal.Zero }, "starting_price"},
		{"negative_increment", func(in *CreateListingInput) { in.MinIncrement = &negative }, "min_increment"},
		{"deadline_in_past", func(in *CreateListingInput) { in.AuctionEndAt = t0.Add(-time.Second) }, "auction_end_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := h.listings.CreateListing(ctx, in, t0)
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tt.field, verr.Field)
		})
	}

	listing, err := h.listings.CreateListing(ctx, valid(), t0)
	require.NoError(t, err)
	require.Equal(t, domain.ListingActive, listing.Status)
	require.True(t, listing.MinIncrement.Equal(dec("5")), "default increment applied")
}

func TestListingService_WithdrawListing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")

	_, err := h.listings.WithdrawListing(ctx, listing.ID, "seller2", t0)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	closed, err := h.listings.WithdrawListing(ctx, listing.ID, "seller1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.ListingClosed, closed.Status)

	_, err = h.listings.WithdrawListing(ctx, listing.ID, "seller1", t0.Add(2*time.Minute))
	require.ErrorIs(t, err, domain.ErrListingNotActive)
	require.Len(t, h.events.ofType(domain.EventListingClosed), 1)
}

func TestListingService_ListingViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")
	quiet := h.openListing(t, "10", "1")

	h.bid(t, listing.ID, "alice", "100", t0.Add(time.Minute))
	leader := h.bid(t, listing.ID, "bob", "115", t0.Add(2*time.Minute))

	view, err := h.listings.GetListingView(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.BidCount)
	require.True(t, view.HighestBid.Equal(dec("115")))

	// rejected bids no longer count as the highest standing amount
	_, err = h.acceptance.RejectBid(ctx, leader.ID, "seller1", t0.Add(3*time.Minute))
	require.NoError(t, err)
	view, err = h.listings.GetListingView(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.BidCount)
	require.Nil(t, view.HighestBid)

	active := domain.ListingActive
	views, err := h.listings.ListListings(ctx, domain.ListingFilter{Status: &active, SellerID: "seller1"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	_, err = h.listings.GetListingView(ctx, "listing_missing")
	require.ErrorIs(t, err, domain.ErrListingNotFound)

	quietView, err := h.listings.GetListingView(ctx, quiet.ID)
	require.NoError(t, err)
	require.Zero(t, quietView.BidCount)
}

func TestListingService_GetListingView_UsesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")

	cache := mocks.NewMockListingViewCache(ctrl)
	svc := NewListingService(h.store, h.locker, memory.NewDirectory("cat1"), h.users, cache,
		h.events, dec("5"), logger.NewNop())

	cached := &domain.ListingView{Listing: listing, BidCount: 7}
	gomock.InOrder(
		cache.EXPECT().GetView(gomock.Any(), listing.ID).Return(nil, false, nil),
		cache.EXPECT().StoreView(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, view *domain.ListingView) error {
				require.Equal(t, listing.ID, view.Listing.ID)
				return nil
			}),
		cache.EXPECT().GetView(gomock.Any(), listing.ID).Return(cached, true, nil),
		cache.EXPECT().GetView(gomock.Any(), listing.ID).Return(nil, false, errors.New("cache down")),
		cache.EXPECT().StoreView(gomock.Any(), gomock.Any()).Return(errors.New("cache down")),
	)

	view, err := svc.GetListingView(ctx, listing.ID)
	require.NoError(t, err)
	require.Zero(t, view.BidCount)

	view, err = svc.GetListingView(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 7, view.BidCount)

	view, err = svc.GetListingView(ctx, listing.ID)
	require.NoError(t, err)
	require.Zero(t, view.BidCount)
}

func TestListingService_ListListingBids(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")
	h.bid(t, listing.ID, "alice", "100", t0.Add(time.Minute))
	h.bid(t, listing.ID, "bob", "130", t0.Add(2*time.Minute))
	h.bid(t, listing.ID, "carol", "140", t0.Add(3*time.Minute))

	_, err := h.listings.ListListingBids(ctx, listing.ID, "alice")
	require.ErrorIs(t, err, domain.ErrNotOwner)

	bids, err := h.listings.ListListingBids(ctx, listing.ID, "seller1")
	require.NoError(t, err)
	require.Len(t, bids, 3)
	require.True(t, bids[0].Amount.Equal(dec("140")))
	require.True(t, bids[2].Amount.Equal(dec("100")))
}

func TestListingService_SellerBidStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	busy := h.openListing(t, "100", "5")
	h.openListing(t, "10", "1")
	h.bid(t, busy.ID, "alice", "100", t0.Add(time.Minute))
	h.bid(t, busy.ID, "bob", "105", t0.Add(2*time.Minute))
	h.bid(t, busy.ID, "alice", "111", t0.Add(3*time.Minute))

	stats, err := h.listings.SellerBidStats(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, stats, 1, "listings without bids are left out")
	require.Equal(t, busy.ID, stats[0].ListingID)
	require.Equal(t, 3, stats[0].BidCount)
	require.True(t, stats[0].MaxBid.Equal(dec("111")))
	require.True(t, stats[0].AvgBid.Equal(dec("105.33")), "avg %s", stats[0].AvgBid)

	empty, err := h.listings.SellerBidStats(ctx, "seller2")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestListingService_SellerBidStats_BusiestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	older := h.openListing(t, "100", "5")
	newer := h.openListing(t, "100", "5")
	h.bid(t, newer.ID, "alice", "100", t0.Add(time.Minute))
	h.bid(t, older.ID, "alice", "100", t0.Add(time.Minute))
	h.bid(t, older.ID, "bob", "105", t0.Add(2*time.Minute))

	stats, err := h.listings.SellerBidStats(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, older.ID, stats[0].ListingID)
	require.Equal(t, 2, stats[0].BidCount)
	require.Equal(t, newer.ID, stats[1].ListingID)
}

func TestListingService_ActiveWithoutBids(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	later := h.openListing(t, "100", "5")
	withBid := h.openListing(t, "100", "5")
	withdrawn := h.openListing(t, "100", "5")
	sooner, err := h.listings.CreateListing(ctx, CreateListingInput{
		SellerID: "seller2", CategoryID: "cat1", Title: "Radio",
		StartingPrice: dec("20"), AuctionEndAt: t0.Add(30 * time.Minute),
	}, t0)
	require.NoError(t, err)

	h.bid(t, withBid.ID, "alice", "100", t0.Add(time.Minute))
	_, err = h.listings.WithdrawListing(ctx, withdrawn.ID, "seller1", t0.Add(time.Minute))
	require.NoError(t, err)

	quiet, err := h.listings.ActiveWithoutBids(ctx)
	require.NoError(t, err)
	require.Len(t, quiet, 2)
	require.Equal(t, sooner.ID, quiet[0].ID)
	require.Equal(t, later.ID, quiet[1].ID)
}

func TestListingService_UpdateListing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")

	title := "  Rangefinder camera "
	price := dec("80")
	increment := dec("2.50")
	end := t0.Add(2 * time.Hour)
	updated, err := h.listings.UpdateListing(ctx, listing.ID, "seller1", UpdateListingInput{
		Title: &title, StartingPrice: &price, MinIncrement: &increment, AuctionEndAt: &end,
	}, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "Rangefinder camera", updated.Title)
	require.True(t, updated.StartingPrice.Equal(price))
	require.Equal(t, end, updated.AuctionEndAt)
	require.Len(t, h.events.ofType(domain.EventListingUpdated), 1)

	minimum, err := h.bids.MinimumBid(ctx, listing.ID)
	require.NoError(t, err)
	require.True(t, minimum.Equal(dec("80")))

	h.bid(t, listing.ID, "alice", "80", t0.Add(2*time.Minute))
	minimum, err = h.bids.MinimumBid(ctx, listing.ID)
	require.NoError(t, err)
	require.True(t, minimum.Equal(dec("82.50")))

	// pricing is frozen once a bid exists, the deadline is not
	raised := dec("90")
	_, err = h.listings.UpdateListing(ctx, listing.ID, "seller1", UpdateListingInput{StartingPrice: &raised}, t0.Add(3*time.Minute))
	require.ErrorIs(t, err, domain.ErrPricingFrozen)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)

	extended := t0.Add(3 * time.Hour)
	updated, err = h.listings.UpdateListing(ctx, listing.ID, "seller1", UpdateListingInput{AuctionEndAt: &extended}, t0.Add(3*time.Minute))
	require.NoError(t, err)
	require.Equal(t, extended, updated.AuctionEndAt)
	require.True(t, updated.StartingPrice.Equal(price))
}

func TestListingService_UpdateListing_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.openListing(t, "100", "5")
	now := t0.Add(time.Minute)

	past := t0
	blank := " "
	zero := decimal.Zero
	negative := dec("-1")
	huge := dec("10000000000")
	unknownCategory := "cat9"

	validation := []struct {
		name  string
		in    UpdateListingInput
		field string
	}{
		{"deadline_not_after_now", UpdateListingInput{AuctionEndAt: &past}, "auction_end_at"},
		{"blank_title", UpdateListingInput{Title: &blank}, "title"},
		{"zero_price", UpdateListingInput{StartingPrice: &zero}, "starting_price"},
		{"negative_increment", UpdateListingInput{MinIncrement: &negative}, "min_increment"},
		{"price_out_of_range", UpdateListingInput{StartingPrice: &huge}, "starting_price"},
		{"unknown_category", UpdateListingInput{CategoryID: &unknownCategory}, "category_id"},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.listings.UpdateListing(ctx, listing.ID, "seller1", tt.in, now)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			require.Equal(t, tt.field, verr.Field)
		})
	}

	title := "Lamp"
	_, err := h.listings.UpdateListing(ctx, listing.ID, "seller2", UpdateListingInput{Title: &title}, now)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = h.listings.UpdateListing(ctx, "listing_missing", "seller1", UpdateListingInput{Title: &title}, now)
	require.ErrorIs(t, err, domain.ErrListingNotFound)

	// a passed deadline cannot be reopened while the sweeper catches up
	reopen := t0.Add(3 * time.Hour)
	_, err = h.listings.UpdateListing(ctx, listing.ID, "seller1", UpdateListingInput{AuctionEndAt: &reopen}, t0.Add(2*time.Hour))
	require.ErrorIs(t, err, domain.ErrListingNotActive)

	_, err = h.listings.WithdrawListing(ctx, listing.ID, "seller1", now)
	require.NoError(t, err)
	_, err = h.listings.UpdateListing(ctx, listing.ID, "seller1", UpdateListingInput{Title: &title}, now)
	require.ErrorIs(t, err, domain.ErrListingNotActive)
	require.Empty(t, h.events.ofType(domain.EventListingUpdated))
}
