package services

import (
	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
)

// MonetaryScale is the number of decimal places amounts are stored with.
const MonetaryScale int32 = 2

// MaxAmount is the largest value a DECIMAL(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// smallestStep is the least amount a bid can beat the leader by when the
// listing has a zero increment, so leaders always strictly increase.
var smallestStep = decimal.New(1, -MonetaryScale)

// CurrentLeader returns the highest PENDING bid, ties going to the earlier
// submission, or nil when no bid is pending. It is always derived from the
// ledger; there is no stored leader field.
func CurrentLeader(bids []*domain.Bid) *domain.Bid {
	var leader *domain.Bid
	for _, b := range bids {
		if b.Status != domain.BidPending {
			continue
		}
		if leader == nil ||
			b.Amount.GreaterThan(leader.Amount) ||
			(b.Amount.Equal(leader.Amount) && b.CreatedAt.Before(leader.CreatedAt)) {
			leader = b
		}
	}
	return leader
}

// MinimumBid is starting_price with no leader, else leader + min_increment.
func MinimumBid(listing *domain.Listing, leader *domain.Bid) decimal.Decimal {
	if leader == nil {
		return listing.StartingPrice
	}
	step := listing.MinIncrement
	if step.LessThan(smallestStep) {
		step = smallestStep
	}
	return leader.Amount.Add(step)
}

// HighestStanding is the top amount among PENDING and ACCEPTED bids.
func HighestStanding(bids []*domain.Bid) *decimal.Decimal {
	var highest *decimal.Decimal
	for _, b := range bids {
		if !b.Status.Standing() {
			continue
		}
		if highest == nil || b.Amount.GreaterThan(*highest) {
			amount := b.Amount
			highest = &amount
		}
	}
	return highest
}

// BuildListingView derives the display projection from a listing and its ledger.
func BuildListingView(listing *domain.Listing, bids []*domain.Bid) *domain.ListingView {
	return &domain.ListingView{
		Listing:    listing,
		HighestBid: HighestStanding(bids),
		BidCount:   len(bids),
	}
}

func validAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MonetaryScale))
}

// amountError checks scale and range of a non-negative amount.
func amountError(field string, d decimal.Decimal) error {
	switch {
	case !validAmountScale(d):
		return domain.NewValidationError(field, "must have at most 2 decimal places")
	case d.GreaterThan(MaxAmount):
		return domain.NewValidationError(field, "must not exceed "+MaxAmount.StringFixed(MonetaryScale))
	}
	return nil
}
