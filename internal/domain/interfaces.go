//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks auction-settlement/internal/domain CategoryDirectory,UserDirectory,ListingViewCache,EventPublisher,UserNotifier,ListingBroadcaster,LeaderElection

package domain

import (
	"context"
	"time"
)

// Repository interfaces
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, listingID string) (*Listing, error)
	// UpdateListingStatus fails with ErrListingNotActive unless the stored
	// status can transition to status.
	UpdateListingStatus(ctx context.Context, listingID string, status ListingStatus, at time.Time) error
	// UpdateListingDetails rewrites the editable fields of an ACTIVE listing.
	UpdateListingDetails(ctx context.Context, listing *Listing) error
	ListListings(ctx context.Context, filter ListingFilter) ([]*Listing, error)
	ListExpirable(ctx context.Context, now time.Time) ([]*Listing, error)
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	// ListBidsForListing returns the ledger ordered by submission time.
	ListBidsForListing(ctx context.Context, listingID string) ([]*Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID string) ([]*Bid, error)
	// CountBidsByBidder returns every bidder with at least minBids bids,
	// most active first.
	CountBidsByBidder(ctx context.Context, minBids int) ([]*BidderActivity, error)
	UpdateBidStatus(ctx context.Context, bidID string, status BidStatus) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderByListing(ctx context.Context, listingID string) (*Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus, at time.Time) error
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	ListPaymentsForOrder(ctx context.Context, orderID string) ([]*Payment, error)
}

type Repositories interface {
	Listings() ListingRepository
	Bids() BidRepository
	Orders() OrderRepository
	Payments() PaymentRepository
}

// Store exposes non-transactional repositories for display reads and an
// atomic scope for mutations.
type Store interface {
	Repositories
	// WithinListingTx runs fn against repositories bound to a single
	// all-or-nothing scope covering listingID. Nothing fn writes is visible
	// unless fn returns nil.
	WithinListingTx(ctx context.Context, listingID string, fn func(tx Repositories) error) error
}

// ListingLocker serializes every state transition on a listing.
type ListingLocker interface {
	Lock(ctx context.Context, listingID string) (unlock func(), err error)
}

// Collaborators owned outside the engine
type CategoryDirectory interface {
	CategoryExists(ctx context.Context, categoryID string) (bool, error)
}

type UserDirectory interface {
	IsValidUser(ctx context.Context, userID string) (bool, error)
}

// Cache interfaces
type ListingViewCache interface {
	GetView(ctx context.Context, listingID string) (*ListingView, bool, error)
	StoreView(ctx context.Context, view *ListingView) error
	Invalidate(ctx context.Context, listingID string) error
}

// Event interfaces
type EventPublisher interface {
	PublishMarketEvent(ctx context.Context, event *MarketEvent) error
}

type EventSubscriber interface {
	SubscribeToMarketEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *MarketEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type ListingBroadcaster interface {
	BroadcastToListing(ctx context.Context, listingID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, listingID string, conn WebSocketConnection) error
	UnregisterConnection(userID, listingID string) error
	GetConnectionsForListing(listingID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToListing(listingID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(listingID string) error
}
