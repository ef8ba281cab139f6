package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinIncrement applies when a listing is created without an increment.
var DefaultMinIncrement = decimal.NewFromInt(5)

type Listing struct {
	ID            string
	SellerID      string
	CategoryID    string
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	AuctionEndAt  time.Time
	Status        ListingStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AcceptsBidsAt reports whether the listing is open for bidding at now.
func (l *Listing) AcceptsBidsAt(now time.Time) bool {
	return l.Status == ListingActive && now.Before(l.AuctionEndAt)
}

type ListingStatus int

const (
	ListingActive ListingStatus = iota
	ListingClosed
	ListingSold
	ListingExpired
)

func (s ListingStatus) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingClosed:
		return "closed"
	case ListingSold:
		return "sold"
	case ListingExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// CanTransitionTo encodes the listing lifecycle: ACTIVE is the only
// non-terminal state and every transition leaves it.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	if s != ListingActive {
		return false
	}
	switch next {
	case ListingClosed, ListingSold, ListingExpired:
		return true
	default:
		return false
	}
}

// ParseListingStatus is the inverse of String.
func ParseListingStatus(s string) (ListingStatus, bool) {
	for _, st := range []ListingStatus{ListingActive, ListingClosed, ListingSold, ListingExpired} {
		if st.String() == s {
			return st, true
		}
	}
	return ListingActive, false
}

// Bid is immutable history: only Status changes after creation.
type Bid struct {
	ID        string
	ListingID string
	BidderID  string
	Amount    decimal.Decimal
	Status    BidStatus
	CreatedAt time.Time
}

type BidStatus int

const (
	BidPending BidStatus = iota
	BidAccepted
	BidRejected
	BidOutbid
)

func (s BidStatus) String() string {
	switch s {
	case BidPending:
		return "pending"
	case BidAccepted:
		return "accepted"
	case BidRejected:
		return "rejected"
	case BidOutbid:
		return "outbid"
	default:
		return "unknown"
	}
}

// Standing reports whether the bid still counts toward the listing's price.
func (s BidStatus) Standing() bool {
	return s == BidPending || s == BidAccepted
}

type Order struct {
	ID          string
	ListingID   string
	BidID       string
	BuyerID     string
	SellerID    string
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderStatus int

const (
	OrderAwaitingPayment OrderStatus = iota
	OrderPaid
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderAwaitingPayment:
		return "awaiting_payment"
	case OrderPaid:
		return "paid"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Payment struct {
	ID          string
	OrderID     string
	Provider    string
	Reference   string
	Amount      decimal.Decimal
	ProcessedAt time.Time
}

// ListingView is a display projection. It is derived from the ledger and
// may be stale; decisions never read it.
type ListingView struct {
	Listing    *Listing
	HighestBid *decimal.Decimal
	BidCount   int
}

// SellerBidStat aggregates the bids received on one of a seller's listings.
type SellerBidStat struct {
	ListingID string
	Title     string
	BidCount  int
	MaxBid    decimal.Decimal
	AvgBid    decimal.Decimal
}

// OutbidBid is one of a bidder's bids that sits below the listing's top amount.
type OutbidBid struct {
	Bid       *Bid
	MaxAmount decimal.Decimal
}

type BidderActivity struct {
	BidderID string
	BidCount int
}

type ListingFilter struct {
	Status     *ListingStatus
	SellerID   string
	CategoryID string
}

type MarketEvent struct {
	Type      MarketEventType  `json:"type"`
	ListingID string           `json:"listing_id"`
	BidID     string           `json:"bid_id,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type MarketEventType string

const (
	EventBidPlaced      MarketEventType = "bid_placed"
	EventBidOutbid      MarketEventType = "bid_outbid"
	EventBidAccepted    MarketEventType = "bid_accepted"
	EventBidRejected    MarketEventType = "bid_rejected"
	EventListingUpdated MarketEventType = "listing_updated"
	EventListingSold    MarketEventType = "listing_sold"
	EventListingClosed  MarketEventType = "listing_closed"
	EventListingExpired MarketEventType = "listing_expired"
	EventOrderPaid      MarketEventType = "order_paid"
	EventOrderCancelled MarketEventType = "order_cancelled"
)

// Terminal reports whether the event ends the listing's auction.
func (t MarketEventType) Terminal() bool {
	return t == EventListingSold || t == EventListingClosed || t == EventListingExpired
}
