package services

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BidService admits bids into the ledger. Every admission reads the current
// leader and writes the new state inside the listing's critical section.
type BidService struct {
	store  domain.Store
	locker domain.ListingLocker
	users  domain.UserDirectory
	events eventEmitter
	log    logger.Logger
}

func NewBidService(
	store domain.Store,
	locker domain.ListingLocker,
	users domain.UserDirectory,
	eventPub domain.EventPublisher,
	log logger.Logger,
) *BidService {
	return &BidService{
		store:  store,
		locker: locker,
		users:  users,
		events: eventEmitter{publisher: eventPub, log: log},
		log:    log,
	}
}

func (s *BidService) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, now time.Time) (*domain.Bid, error) {
	switch {
	case listingID == "":
		return nil, domain.NewValidationError("listing_id", "is required")
	case bidderID == "":
		return nil, domain.NewValidationError("bidder_id", "is required")
	case !amount.IsPositive():
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if err := amountError("amount", amount); err != nil {
		return nil, err
	}

	ok, err := s.users.IsValidUser(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: check bidder %s: %w", bidderID, err)
	}
	if !ok {
		return nil, domain.NewValidationError("bidder_id", "is not a known user")
	}

	var placed, demoted *domain.Bid
	err = mutateListing(ctx, s.locker, s.store, listingID, func(tx domain.Repositories) error {
		listing, err := tx.Listings().GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if !listing.AcceptsBidsAt(now) {
			return fmt.Errorf("listing %s is %s: %w", listingID, listing.Status, domain.ErrListingNotActive)
		}
		if listing.SellerID == bidderID {
			return domain.ErrSelfBid
		}

		bids, err := tx.Bids().ListBidsForListing(ctx, listingID)
		if err != nil {
			return err
		}
		leader := CurrentLeader(bids)
		minimum := MinimumBid(listing, leader)
		if amount.LessThan(minimum) {
			return &domain.BidTooLowError{Amount: amount, Minimum: minimum}
		}

		placed = &domain.Bid{
			ID:        utils.GenerateID("bid"),
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			Status:    domain.BidPending,
			CreatedAt: now,
		}
		if err := tx.Bids().CreateBid(ctx, placed); err != nil {
			return err
		}
		if leader != nil {
			if err := tx.Bids().UpdateBidStatus(ctx, leader.ID, domain.BidOutbid); err != nil {
				return err
			}
			demoted = leader
		}
		return nil
	})
	if err != nil {
		s.log.Debug("Bid refused", "listing_id", listingID, "bidder_id", bidderID,
			"amount", amount.String(), "error", err)
		return nil, err
	}

	s.log.Info("Bid placed", "bid_id", placed.ID, "listing_id", listingID,
		"bidder_id", bidderID, "amount", amount.String())

	placedAmount := placed.Amount
	events := []*domain.MarketEvent{{
		Type:      domain.EventBidPlaced,
		ListingID: listingID,
		BidID:     placed.ID,
		UserID:    bidderID,
		Amount:    &placedAmount,
		Timestamp: now,
	}}
	if demoted != nil {
		demotedAmount := demoted.Amount
		events = append(events, &domain.MarketEvent{
			Type:      domain.EventBidOutbid,
			ListingID: listingID,
			BidID:     demoted.ID,
			UserID:    demoted.BidderID,
			Amount:    &demotedAmount,
			Timestamp: now,
		})
	}
	s.events.emit(ctx, events...)

	return placed, nil
}

// MinimumBid reports the current threshold from a display read. PlaceBid
// recomputes it inside the critical section and never trusts this value.
func (s *BidService) MinimumBid(ctx context.Context, listingID string) (decimal.Decimal, error) {
	listing, err := s.store.Listings().GetListing(ctx, listingID)
	if err != nil {
		return decimal.Zero, err
	}
	bids, err := s.store.Bids().ListBidsForListing(ctx, listingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("service: list bids for %s: %w", listingID, err)
	}
	return MinimumBid(listing, CurrentLeader(bids)), nil
}

// ListBidderBids is the bidder's full history, superseded bids included.
func (s *BidService) ListBidderBids(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	if bidderID == "" {
		return nil, domain.NewValidationError("bidder_id", "is required")
	}
	return s.store.Bids().ListBidsByBidder(ctx, bidderID)
}

// OutbidBids returns the bidder's bids that sit below the top amount ever
// bid on their listing, whatever their status, highest top amount first.
func (s *BidService) OutbidBids(ctx context.Context, bidderID string) ([]*domain.OutbidBid, error) {
	bids, err := s.ListBidderBids(ctx, bidderID)
	if err != nil {
		return nil, err
	}

	maxByListing := make(map[string]decimal.Decimal)
	out := make([]*domain.OutbidBid, 0, len(bids))
	for _, b := range bids {
		top, ok := maxByListing[b.ListingID]
		if !ok {
			ledger, err := s.store.Bids().ListBidsForListing(ctx, b.ListingID)
			if err != nil {
				return nil, fmt.Errorf("service: list bids for %s: %w", b.ListingID, err)
			}
			for _, other := range ledger {
				if other.Amount.GreaterThan(top) {
					top = other.Amount
				}
			}
			maxByListing[b.ListingID] = top
		}
		if b.Amount.LessThan(top) {
			out = append(out, &domain.OutbidBid{Bid: b, MaxAmount: top})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MaxAmount.GreaterThan(out[j].MaxAmount) })
	return out, nil
}

// TopBidders ranks bidders by how many bids they placed.
func (s *BidService) TopBidders(ctx context.Context, minBids int) ([]*domain.BidderActivity, error) {
	if minBids < 1 {
		return nil, domain.NewValidationError("min_bids", "must be at least 1")
	}
	activity, err := s.store.Bids().CountBidsByBidder(ctx, minBids)
	if err != nil {
		return nil, fmt.Errorf("service: count bids by bidder: %w", err)
	}
	return activity, nil
}
