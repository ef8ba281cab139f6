package services

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
	"context"
	"fmt"
	"time"
)

// AcceptanceService lets a seller settle a listing on one bid or decline
// individual bids.
type AcceptanceService struct {
	store  domain.Store
	locker domain.ListingLocker
	events eventEmitter
	log    logger.Logger
}

func NewAcceptanceService(store domain.Store, locker domain.ListingLocker,
	eventPub domain.EventPublisher, log logger.Logger) *AcceptanceService {
	return &AcceptanceService{
		store:  store,
		locker: locker,
		events: eventEmitter{publisher: eventPub, log: log},
		log:    log,
	}
}

// AcceptBid resolves the bid's listing and accepts it there.
func (s *AcceptanceService) AcceptBid(ctx context.Context, bidID, sellerID string, now time.Time) (*domain.Order, error) {
	if bidID == "" {
		return nil, domain.NewValidationError("bid_id", "is required")
	}
	bid, err := s.store.Bids().GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	return s.AcceptListingBid(ctx, bid.ListingID, bidID, sellerID, now)
}

// AcceptListingBid accepts bidID, rejects every other pending bid, marks the
// listing SOLD and opens its order. All of it commits or none of it does.
func (s *AcceptanceService) AcceptListingBid(ctx context.Context, listingID, bidID, sellerID string, now time.Time) (*domain.Order, error) {
	switch {
	case listingID == "":
		return nil, domain.NewValidationError("listing_id", "is required")
	case bidID == "":
		return nil, domain.NewValidationError("bid_id", "is required")
	case sellerID == "":
		return nil, domain.NewValidationError("seller_id", "is required")
	}

	var (
		order    *domain.Order
		accepted *domain.Bid
		rejected []*domain.Bid
	)
	err := mutateListing(ctx, s.locker, s.store, listingID, func(tx domain.Repositories) error {
		listing, bid, err := loadSellerBid(ctx, tx, listingID, bidID, sellerID)
		if err != nil {
			return err
		}

		bids, err := tx.Bids().ListBidsForListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := tx.Bids().UpdateBidStatus(ctx, bid.ID, domain.BidAccepted); err != nil {
			return err
		}
		for _, other := range bids {
			if other.ID == bid.ID || other.Status != domain.BidPending {
				continue
			}
			if err := tx.Bids().UpdateBidStatus(ctx, other.ID, domain.BidRejected); err != nil {
				return err
			}
			rejected = append(rejected, other)
		}
		if err := tx.Listings().UpdateListingStatus(ctx, listingID, domain.ListingSold, now); err != nil {
			return err
		}

		order = &domain.Order{
			ID:          utils.GenerateID("order"),
			ListingID:   listingID,
			BidID:       bid.ID,
			BuyerID:     bid.BidderID,
			SellerID:    listing.SellerID,
			TotalAmount: bid.Amount,
			Status:      domain.OrderAwaitingPayment,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		accepted = bid
		return tx.Orders().CreateOrder(ctx, order)
	})
	if err != nil {
		s.log.Debug("Accept refused", "listing_id", listingID, "bid_id", bidID, "error", err)
		return nil, err
	}

	s.log.Info("Bid accepted", "listing_id", listingID, "bid_id", bidID,
		"order_id", order.ID, "amount", order.TotalAmount.String(), "auto_rejected", len(rejected))

	amount := order.TotalAmount
	events := []*domain.MarketEvent{{
		Type:      domain.EventBidAccepted,
		ListingID: listingID,
		BidID:     accepted.ID,
		OrderID:   order.ID,
		UserID:    accepted.BidderID,
		Amount:    &amount,
		Timestamp: now,
	}}
	for _, r := range rejected {
		events = append(events, &domain.MarketEvent{
			Type:      domain.EventBidRejected,
			ListingID: listingID,
			BidID:     r.ID,
			UserID:    r.BidderID,
			Timestamp: now,
		})
	}
	events = append(events, &domain.MarketEvent{
		Type:      domain.EventListingSold,
		ListingID: listingID,
		BidID:     accepted.ID,
		OrderID:   order.ID,
		UserID:    accepted.BidderID,
		Amount:    &amount,
		Timestamp: now,
	})
	s.events.emit(ctx, events...)

	return order, nil
}

// RejectBid declines one pending bid. The listing stays ACTIVE and no other
// bid changes; the next leader is derived on the next admission.
func (s *AcceptanceService) RejectBid(ctx context.Context, bidID, sellerID string, now time.Time) (*domain.Bid, error) {
	switch {
	case bidID == "":
		return nil, domain.NewValidationError("bid_id", "is required")
	case sellerID == "":
		return nil, domain.NewValidationError("seller_id", "is required")
	}
	found, err := s.store.Bids().GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	var rejected *domain.Bid
	err = mutateListing(ctx, s.locker, s.store, found.ListingID, func(tx domain.Repositories) error {
		_, bid, err := loadSellerBid(ctx, tx, found.ListingID, bidID, sellerID)
		if err != nil {
			return err
		}
		if err := tx.Bids().UpdateBidStatus(ctx, bid.ID, domain.BidRejected); err != nil {
			return err
		}
		bid.Status = domain.BidRejected
		rejected = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Bid rejected", "listing_id", rejected.ListingID, "bid_id", bidID)
	s.events.emit(ctx, &domain.MarketEvent{
		Type:      domain.EventBidRejected,
		ListingID: rejected.ListingID,
		BidID:     rejected.ID,
		UserID:    rejected.BidderID,
		Timestamp: now,
	})
	return rejected, nil
}

// loadSellerBid checks, in order: ownership, listing ACTIVE, bid on the
// listing, bid PENDING.
func loadSellerBid(ctx context.Context, tx domain.Repositories, listingID, bidID, sellerID string) (*domain.Listing, *domain.Bid, error) {
	listing, err := tx.Listings().GetListing(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if listing.SellerID != sellerID {
		return nil, nil, domain.ErrNotOwner
	}
	if listing.Status != domain.ListingActive {
		return nil, nil, fmt.Errorf("listing %s is %s: %w", listingID, listing.Status, domain.ErrListingNotActive)
	}

	bid, err := tx.Bids().GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	if bid.ListingID != listingID {
		return nil, nil, fmt.Errorf("bid %s is not on listing %s: %w", bidID, listingID, domain.ErrBidNotFound)
	}
	if bid.Status != domain.BidPending {
		return nil, nil, fmt.Errorf("bid %s is %s: %w", bidID, bid.Status, domain.ErrBidNotPending)
	}
	return listing, bid, nil
}
