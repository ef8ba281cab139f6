package services

import (
	"testing"
	"time"

	"auction-settlement/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestCurrentLeader(t *testing.T) {
	early := &domain.Bid{ID: "early", Amount: dec("120"), Status: domain.BidPending, CreatedAt: t0}
	late := &domain.Bid{ID: "late", Amount: dec("120"), Status: domain.BidPending, CreatedAt: t0.Add(time.Second)}
	low := &domain.Bid{ID: "low", Amount: dec("90"), Status: domain.BidPending, CreatedAt: t0}
	rejected := &domain.Bid{ID: "rejected", Amount: dec("500"), Status: domain.BidRejected, CreatedAt: t0}
	accepted := &domain.Bid{ID: "accepted", Amount: dec("600"), Status: domain.BidAccepted, CreatedAt: t0}

	require.Nil(t, CurrentLeader(nil))
	require.Nil(t, CurrentLeader([]*domain.Bid{rejected, accepted}))
	require.Equal(t, "early", CurrentLeader([]*domain.Bid{late, low, early, rejected}).ID)
	require.Equal(t, "low", CurrentLeader([]*domain.Bid{low, rejected}).ID)
}

func TestMinimumBid(t *testing.T) {
	listing := &domain.Listing{StartingPrice: dec("100"), MinIncrement: dec("2.50")}
	require.True(t, MinimumBid(listing, nil).Equal(dec("100")))

	leader := &domain.Bid{Amount: dec("140")}
	require.True(t, MinimumBid(listing, leader).Equal(dec("142.50")))

	listing.MinIncrement = dec("0")
	require.True(t, MinimumBid(listing, leader).Equal(dec("140.01")))
}

func TestBuildListingView(t *testing.T) {
	listing := &domain.Listing{ID: "l1"}
	bids := []*domain.Bid{
		{Amount: dec("100"), Status: domain.BidOutbid},
		{Amount: dec("300"), Status: domain.BidRejected},
		{Amount: dec("150"), Status: domain.BidAccepted},
	}

	view := BuildListingView(listing, bids)
	require.Equal(t, 3, view.BidCount)
	require.True(t, view.HighestBid.Equal(dec("150")))

	require.Nil(t, BuildListingView(listing, nil).HighestBid)
}
