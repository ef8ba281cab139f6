package services

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CreateListingInput struct {
	SellerID      string
	CategoryID    string
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	// MinIncrement falls back to the service default when nil.
	MinIncrement  *decimal.Decimal
	AuctionEndAt  time.Time
}

// UpdateListingInput carries the fields a seller may change. Nil leaves the
// stored value alone.
type UpdateListingInput struct {
	CategoryID    *string
	Title         *string
	Description   *string
	StartingPrice *decimal.Decimal
	MinIncrement  *decimal.Decimal
	AuctionEndAt  *time.Time
}

func (in UpdateListingInput) changesPricing() bool {
	return in.StartingPrice != nil || in.MinIncrement != nil
}

// ListingService owns listing creation, withdrawal and the display
// projections built from the ledger.
type ListingService struct {
	store        domain.Store
	locker       domain.ListingLocker
	categories   domain.CategoryDirectory
	users        domain.UserDirectory
	viewCache    domain.ListingViewCache
	minIncrement decimal.Decimal
	events       eventEmitter
	log          logger.Logger
}

func NewListingService(
	store domain.Store,
	locker domain.ListingLocker,
	categories domain.CategoryDirectory,
	users domain.UserDirectory,
	viewCache domain.ListingViewCache,
	eventPub domain.EventPublisher,
	minIncrement decimal.Decimal,
	log logger.Logger,
) *ListingService {
	return &ListingService{
		store:        store,
		locker:       locker,
		categories:   categories,
		users:        users,
		viewCache:    viewCache,
		minIncrement: minIncrement,
		events:       eventEmitter{publisher: eventPub, log: log},
		log:          log,
	}
}

func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput, now time.Time) (*domain.Listing, error) {
	increment := s.minIncrement
	if in.MinIncrement != nil {
		increment = *in.MinIncrement
	}
	title := strings.TrimSpace(in.Title)

	switch {
	case in.SellerID == "":
		return nil, domain.NewValidationError("seller_id", "is required")
	case in.CategoryID == "":
		return nil, domain.NewValidationError("category_id", "is required")
	case title == "":
		return nil, domain.NewValidationError("title", "is required")
	case !in.StartingPrice.IsPositive():
		return nil, domain.NewValidationError("starting_price", "must be positive")
	case increment.IsNegative():
		return nil, domain.NewValidationError("min_increment", "must not be negative")
	case !in.AuctionEndAt.After(now):
		return nil, domain.NewValidationError("auction_end_at", "must be in the future")
	}
	if err := amountError("starting_price", in.StartingPrice); err != nil {
		return nil, err
	}
	if err := amountError("min_increment", increment); err != nil {
		return nil, err
	}

	ok, err := s.users.IsValidUser(ctx, in.SellerID)
	if err != nil {
		return nil, fmt.Errorf("service: check seller %s: %w", in.SellerID, err)
	}
	if !ok {
		return nil, domain.NewValidationError("seller_id", "is not a known user")
	}
	ok, err = s.categories.CategoryExists(ctx, in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("service: check category %s: %w", in.CategoryID, err)
	}
	if !ok {
		return nil, domain.NewValidationError("category_id", "does not exist")
	}

	listing := &domain.Listing{
		ID:            utils.GenerateID("listing"),
		SellerID:      in.SellerID,
		CategoryID:    in.CategoryID,
		Title:         title,
		Description:   in.Description,
		StartingPrice: in.StartingPrice,
		MinIncrement:  increment,
		AuctionEndAt:  in.AuctionEndAt.UTC(),
		Status:        domain.ListingActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Listings().CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("service: create listing: %w", err)
	}

	s.log.Info("Listing created", "listing_id", listing.ID, "seller_id", listing.SellerID,
		"starting_price", listing.StartingPrice.String(), "auction_end_at", listing.AuctionEndAt)
	return listing, nil
}

// WithdrawListing closes an ACTIVE listing on the seller's request.
func (s *ListingService) WithdrawListing(ctx context.Context, listingID, sellerID string, now time.Time) (*domain.Listing, error) {
	switch {
	case listingID == "":
		return nil, domain.NewValidationError("listing_id", "is required")
	case sellerID == "":
		return nil, domain.NewValidationError("seller_id", "is required")
	}

	var closed *domain.Listing
	err := mutateListing(ctx, s.locker, s.store, listingID, func(tx domain.Repositories) error {
		listing, err := tx.Listings().GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return domain.ErrNotOwner
		}
		if err := tx.Listings().UpdateListingStatus(ctx, listingID, domain.ListingClosed, now); err != nil {
			return err
		}
		listing.Status = domain.ListingClosed
		listing.UpdatedAt = now
		closed = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Listing withdrawn", "listing_id", listingID)
	s.events.emit(ctx, &domain.MarketEvent{
		Type:      domain.EventListingClosed,
		ListingID: listingID,
		UserID:    sellerID,
		Timestamp: now,
	})
	return closed, nil
}

// UpdateListing edits an open listing. Pricing is frozen once the first bid
// lands, since the minimum bid is derived from it.
func (s *ListingService) UpdateListing(ctx context.Context, listingID, sellerID string, in UpdateListingInput, now time.Time) (*domain.Listing, error) {
	if err := s.validateUpdate(ctx, listingID, sellerID, in, now); err != nil {
		return nil, err
	}

	var updated *domain.Listing
	err := mutateListing(ctx, s.locker, s.store, listingID, func(tx domain.Repositories) error {
		listing, err := tx.Listings().GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return domain.ErrNotOwner
		}
		if !listing.AcceptsBidsAt(now) {
			return fmt.Errorf("listing %s is %s: %w", listingID, listing.Status, domain.ErrListingNotActive)
		}
		if in.changesPricing() {
			bids, err := tx.Bids().ListBidsForListing(ctx, listingID)
			if err != nil {
				return err
			}
			if len(bids) > 0 {
				return domain.ErrPricingFrozen
			}
		}

		if in.CategoryID != nil {
			listing.CategoryID = *in.CategoryID
		}
		if in.Title != nil {
			listing.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			listing.Description = *in.Description
		}
		if in.StartingPrice != nil {
			listing.StartingPrice = *in.StartingPrice
		}
		if in.MinIncrement != nil {
			listing.MinIncrement = *in.MinIncrement
		}
		if in.AuctionEndAt != nil {
			listing.AuctionEndAt = in.AuctionEndAt.UTC()
		}
		listing.UpdatedAt = now

		if err := tx.Listings().UpdateListingDetails(ctx, listing); err != nil {
			return err
		}
		updated = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Listing updated", "listing_id", listingID, "auction_end_at", updated.AuctionEndAt)
	s.events.emit(ctx, &domain.MarketEvent{
		Type:      domain.EventListingUpdated,
		ListingID: listingID,
		UserID:    sellerID,
		Timestamp: now,
	})
	return updated, nil
}

func (s *ListingService) validateUpdate(ctx context.Context, listingID, sellerID string, in UpdateListingInput, now time.Time) error {
	switch {
	case listingID == "":
		return domain.NewValidationError("listing_id", "is required")
	case sellerID == "":
		return domain.NewValidationError("seller_id", "is required")
	case in.Title != nil && strings.TrimSpace(*in.Title) == "":
		return domain.NewValidationError("title", "is required")
	case in.CategoryID != nil && *in.CategoryID == "":
		return domain.NewValidationError("category_id", "is required")
	case in.StartingPrice != nil && !in.StartingPrice.IsPositive():
		return domain.NewValidationError("starting_price", "must be positive")
	case in.MinIncrement != nil && in.MinIncrement.IsNegative():
		return domain.NewValidationError("min_increment", "must not be negative")
	case in.AuctionEndAt != nil && !in.AuctionEndAt.After(now):
		return domain.NewValidationError("auction_end_at", "must be in the future")
	}
	if in.StartingPrice != nil {
		if err := amountError("starting_price", *in.StartingPrice); err != nil {
			return err
		}
	}
	if in.MinIncrement != nil {
		if err := amountError("min_increment", *in.MinIncrement); err != nil {
			return err
		}
	}
	if in.CategoryID != nil {
		ok, err := s.categories.CategoryExists(ctx, *in.CategoryID)
		if err != nil {
			return fmt.Errorf("service: check category %s: %w", *in.CategoryID, err)
		}
		if !ok {
			return domain.NewValidationError("category_id", "does not exist")
		}
	}
	return nil
}

func (s *ListingService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	return s.store.Listings().GetListing(ctx, listingID)
}

// GetListingView serves the projection from the cache when it can. Cache
// failures fall through to the store.
func (s *ListingService) GetListingView(ctx context.Context, listingID string) (*domain.ListingView, error) {
	if s.viewCache != nil {
		view, ok, err := s.viewCache.GetView(ctx, listingID)
		if err != nil {
			s.log.Warn("Listing view cache read failed", "listing_id", listingID, "error", err)
		} else if ok {
			return view, nil
		}
	}

	listing, err := s.store.Listings().GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	view, err := s.buildView(ctx, listing)
	if err != nil {
		return nil, err
	}

	if s.viewCache != nil {
		if err := s.viewCache.StoreView(ctx, view); err != nil {
			s.log.Warn("Listing view cache write failed", "listing_id", listingID, "error", err)
		}
	}
	return view, nil
}

func (s *ListingService) ListListings(ctx context.Context, filter domain.ListingFilter) ([]*domain.ListingView, error) {
	listings, err := s.store.Listings().ListListings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: list listings: %w", err)
	}
	views := make([]*domain.ListingView, 0, len(listings))
	for _, l := range listings {
		view, err := s.buildView(ctx, l)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ListListingBids is the seller's view of every bid on a listing, highest first.
func (s *ListingService) ListListingBids(ctx context.Context, listingID, sellerID string) ([]*domain.Bid, error) {
	listing, err := s.store.Listings().GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, domain.ErrNotOwner
	}
	bids, err := s.store.Bids().ListBidsForListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("service: list bids for %s: %w", listingID, err)
	}
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Amount.GreaterThan(bids[j].Amount)
	})
	return bids, nil
}

// SellerBidStats aggregates bid activity on the seller's listings that
// received at least one bid, busiest first.
func (s *ListingService) SellerBidStats(ctx context.Context, sellerID string) ([]*domain.SellerBidStat, error) {
	if sellerID == "" {
		return nil, domain.NewValidationError("seller_id", "is required")
	}
	listings, err := s.store.Listings().ListListings(ctx, domain.ListingFilter{SellerID: sellerID})
	if err != nil {
		return nil, fmt.Errorf("service: list seller listings: %w", err)
	}

	stats := make([]*domain.SellerBidStat, 0, len(listings))
	for _, l := range listings {
		bids, err := s.store.Bids().ListBidsForListing(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("service: list bids for %s: %w", l.ID, err)
		}
		if len(bids) == 0 {
			continue
		}
		sum := decimal.Zero
		highest := bids[0].Amount
		for _, b := range bids {
			sum = sum.Add(b.Amount)
			if b.Amount.GreaterThan(highest) {
				highest = b.Amount
			}
		}
		stats = append(stats, &domain.SellerBidStat{
			ListingID: l.ID,
			Title:     l.Title,
			BidCount:  len(bids),
			MaxBid:    highest,
			AvgBid:    sum.Div(decimal.NewFromInt(int64(len(bids)))).Round(MonetaryScale),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].BidCount > stats[j].BidCount })
	return stats, nil
}

// ActiveWithoutBids lists open listings nobody has bid on, closest deadline first.
func (s *ListingService) ActiveWithoutBids(ctx context.Context) ([]*domain.Listing, error) {
	active := domain.ListingActive
	listings, err := s.store.Listings().ListListings(ctx, domain.ListingFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("service: list active listings: %w", err)
	}

	var quiet []*domain.Listing
	for _, l := range listings {
		bids, err := s.store.Bids().ListBidsForListing(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("service: list bids for %s: %w", l.ID, err)
		}
		if len(bids) == 0 {
			quiet = append(quiet, l)
		}
	}
	sort.SliceStable(quiet, func(i, j int) bool { return quiet[i].AuctionEndAt.Before(quiet[j].AuctionEndAt) })
	return quiet, nil
}

func (s *ListingService) buildView(ctx context.Context, listing *domain.Listing) (*domain.ListingView, error) {
	bids, err := s.store.Bids().ListBidsForListing(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("service: list bids for %s: %w", listing.ID, err)
	}
	return BuildListingView(listing, bids), nil
}
