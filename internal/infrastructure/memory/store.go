package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-settlement/internal/domain"
)

// Store is a concurrency-safe in-memory implementation of domain.Store.
// Transactions stage their writes and apply them in one step on commit.
type Store struct {
	mu sync.RWMutex

	listings        map[string]domain.Listing
	listingOrder    []string
	bids            map[string]domain.Bid
	bidsByListing   map[string][]string // listingID -> bid ids in submission order
	orders          map[string]domain.Order
	orderByListing  map[string]string
	payments        map[string]domain.Payment
	paymentsByOrder map[string][]string

	rowLocks *KeyedLocker
}

func NewStore() *Store {
	return &Store{
		listings:        make(map[string]domain.Listing),
		bids:            make(map[string]domain.Bid),
		bidsByListing:   make(map[string][]string),
		orders:          make(map[string]domain.Order),
		orderByListing:  make(map[string]string),
		payments:        make(map[string]domain.Payment),
		paymentsByOrder: make(map[string][]string),
		rowLocks:        NewKeyedLocker(),
	}
}

func (s *Store) Listings() domain.ListingRepository { return &listingRepo{t: s.autoTx()} }
func (s *Store) Bids() domain.BidRepository         { return &bidRepo{t: s.autoTx()} }
func (s *Store) Orders() domain.OrderRepository     { return &orderRepo{t: s.autoTx()} }
func (s *Store) Payments() domain.PaymentRepository { return &paymentRepo{t: s.autoTx()} }

// WithinListingTx holds the listing's row lock for the duration of fn, the
// in-memory counterpart of SELECT ... FOR UPDATE.
func (s *Store) WithinListingTx(ctx context.Context, listingID string, fn func(tx domain.Repositories) error) error {
	unlock, err := s.rowLocks.Lock(ctx, listingID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	_, ok := s.listings[listingID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("memory: lock listing %s: %w", listingID, domain.ErrListingNotFound)
	}

	t := s.stagedTx()
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

type tx struct {
	base *Store
	auto bool

	listings    map[string]domain.Listing
	newListings []string
	bids        map[string]domain.Bid
	newBids     []string
	orders      map[string]domain.Order
	newOrders   []string
	payments    map[string]domain.Payment
	newPayments []string
}

// autoTx writes straight through to the store.
func (s *Store) autoTx() *tx {
	return &tx{base: s, auto: true}
}

func (s *Store) stagedTx() *tx {
	return &tx{
		base:     s,
		listings: make(map[string]domain.Listing),
		bids:     make(map[string]domain.Bid),
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.Payment),
	}
}

func (t *tx) Listings() domain.ListingRepository { return &listingRepo{t: t} }
func (t *tx) Bids() domain.BidRepository         { return &bidRepo{t: t} }
func (t *tx) Orders() domain.OrderRepository     { return &orderRepo{t: t} }
func (t *tx) Payments() domain.PaymentRepository { return &paymentRepo{t: t} }

func (t *tx) commit() {
	s := t.base
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.newListings {
		s.listingOrder = append(s.listingOrder, id)
	}
	for id, l := range t.listings {
		s.listings[id] = l
	}
	for _, id := range t.newBids {
		b := t.bids[id]
		s.bidsByListing[b.ListingID] = append(s.bidsByListing[b.ListingID], id)
	}
	for id, b := range t.bids {
		s.bids[id] = b
	}
	for _, id := range t.newOrders {
		s.orderByListing[t.orders[id].ListingID] = id
	}
	for id, o := range t.orders {
		s.orders[id] = o
	}
	for _, id := range t.newPayments {
		p := t.payments[id]
		s.paymentsByOrder[p.OrderID] = append(s.paymentsByOrder[p.OrderID], id)
	}
	for id, p := range t.payments {
		s.payments[id] = p
	}
}

// listing reads through the staged overlay to the store.
func (t *tx) listing(id string) (domain.Listing, bool) {
	if l, ok := t.listings[id]; ok {
		return l, true
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	l, ok := t.base.listings[id]
	return l, ok
}

func (t *tx) putListing(l domain.Listing, isNew bool) {
	if t.auto {
		t.base.mu.Lock()
		defer t.base.mu.Unlock()
		if isNew {
			t.base.listingOrder = append(t.base.listingOrder, l.ID)
		}
		t.base.listings[l.ID] = l
		return
	}
	if isNew {
		t.newListings = append(t.newListings, l.ID)
	}
	t.listings[l.ID] = l
}

func (t *tx) allListings() []domain.Listing {
	t.base.mu.RLock()
	ids := append([]string(nil), t.base.listingOrder...)
	t.base.mu.RUnlock()
	ids = append(ids, t.newListings...)

	out := make([]domain.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := t.listing(id); ok {
			out = append(out, l)
		}
	}
	return out
}

func (t *tx) bid(id string) (domain.Bid, bool) {
	if b, ok := t.bids[id]; ok {
		return b, true
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	b, ok := t.base.bids[id]
	return b, ok
}

func (t *tx) putBid(b domain.Bid, isNew bool) {
	if t.auto {
		t.base.mu.Lock()
		defer t.base.mu.Unlock()
		if isNew {
			t.base.bidsByListing[b.ListingID] = append(t.base.bidsByListing[b.ListingID], b.ID)
		}
		t.base.bids[b.ID] = b
		return
	}
	if isNew {
		t.newBids = append(t.newBids, b.ID)
	}
	t.bids[b.ID] = b
}

func (t *tx) bidIDsForListing(listingID string) []string {
	t.base.mu.RLock()
	ids := append([]string(nil), t.base.bidsByListing[listingID]...)
	t.base.mu.RUnlock()
	for _, id := range t.newBids {
		if t.bids[id].ListingID == listingID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *tx) allBidIDs() []string {
	t.base.mu.RLock()
	ids := make([]string, 0, len(t.base.bids)+len(t.newBids))
	for id := range t.base.bids {
		ids = append(ids, id)
	}
	t.base.mu.RUnlock()
	return append(ids, t.newBids...)
}

func (t *tx) order(id string) (domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	o, ok := t.base.orders[id]
	return o, ok
}

func (t *tx) orderIDForListing(listingID string) (string, bool) {
	for _, id := range t.newOrders {
		if t.orders[id].ListingID == listingID {
			return id, true
		}
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	id, ok := t.base.orderByListing[listingID]
	return id, ok
}

func (t *tx) putOrder(o domain.Order, isNew bool) {
	if t.auto {
		t.base.mu.Lock()
		defer t.base.mu.Unlock()
		if isNew {
			t.base.orderByListing[o.ListingID] = o.ID
		}
		t.base.orders[o.ID] = o
		return
	}
	if isNew {
		t.newOrders = append(t.newOrders, o.ID)
	}
	t.orders[o.ID] = o
}

func (t *tx) allOrders() []domain.Order {
	t.base.mu.RLock()
	ids := make([]string, 0, len(t.base.orders)+len(t.newOrders))
	for id := range t.base.orders {
		ids = append(ids, id)
	}
	t.base.mu.RUnlock()
	ids = append(ids, t.newOrders...)

	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := t.order(id); ok {
			out = append(out, o)
		}
	}
	return out
}

func (t *tx) putPayment(p domain.Payment) {
	if t.auto {
		t.base.mu.Lock()
		defer t.base.mu.Unlock()
		t.base.paymentsByOrder[p.OrderID] = append(t.base.paymentsByOrder[p.OrderID], p.ID)
		t.base.payments[p.ID] = p
		return
	}
	t.newPayments = append(t.newPayments, p.ID)
	t.payments[p.ID] = p
}

func (t *tx) paymentsForOrder(orderID string) []domain.Payment {
	t.base.mu.RLock()
	var out []domain.Payment
	for _, id := range t.base.paymentsByOrder[orderID] {
		out = append(out, t.base.payments[id])
	}
	t.base.mu.RUnlock()
	for _, id := range t.newPayments {
		if p := t.payments[id]; p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

type listingRepo struct{ t *tx }

func (r *listingRepo) CreateListing(ctx context.Context, listing *domain.Listing) error {
	if _, exists := r.t.listing(listing.ID); exists {
		return fmt.Errorf("memory: listing %s already exists", listing.ID)
	}
	r.t.putListing(*listing, true)
	return nil
}

func (r *listingRepo) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	l, ok := r.t.listing(listingID)
	if !ok {
		return nil, fmt.Errorf("memory: get listing %s: %w", listingID, domain.ErrListingNotFound)
	}
	return &l, nil
}

func (r *listingRepo) UpdateListingStatus(ctx context.Context, listingID string, status domain.ListingStatus, at time.Time) error {
	l, ok := r.t.listing(listingID)
	if !ok {
		return fmt.Errorf("memory: update listing %s: %w", listingID, domain.ErrListingNotFound)
	}
	if !l.Status.CanTransitionTo(status) {
		return fmt.Errorf("memory: listing %s is %s: %w", listingID, l.Status, domain.ErrListingNotActive)
	}
	l.Status = status
	l.UpdatedAt = at
	r.t.putListing(l, false)
	return nil
}

func (r *listingRepo) UpdateListingDetails(ctx context.Context, listing *domain.Listing) error {
	l, ok := r.t.listing(listing.ID)
	if !ok {
		return fmt.Errorf("memory: update listing %s: %w", listing.ID, domain.ErrListingNotFound)
	}
	if l.Status != domain.ListingActive {
		return fmt.Errorf("memory: listing %s is %s: %w", listing.ID, l.Status, domain.ErrListingNotActive)
	}
	l.CategoryID = listing.CategoryID
	l.Title = listing.Title
	l.Description = listing.Description
	l.StartingPrice = listing.StartingPrice
	l.MinIncrement = listing.MinIncrement
	l.AuctionEndAt = listing.AuctionEndAt
	l.UpdatedAt = listing.UpdatedAt
	r.t.putListing(l, false)
	return nil
}

func (r *listingRepo) ListListings(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, error) {
	var out []*domain.Listing
	all := r.t.allListings()
	// newest first, as the listing feed shows them
	for i := len(all) - 1; i >= 0; i-- {
		l := all[i]
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if filter.CategoryID != "" && l.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, &l)
	}
	return out, nil
}

func (r *listingRepo) ListExpirable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	var out []*domain.Listing
	for _, l := range r.t.allListings() {
		l := l
		if l.Status == domain.ListingActive && !l.AuctionEndAt.After(now) {
			out = append(out, &l)
		}
	}
	return out, nil
}

type bidRepo struct{ t *tx }

func (r *bidRepo) CreateBid(ctx context.Context, bid *domain.Bid) error {
	if _, exists := r.t.bid(bid.ID); exists {
		return fmt.Errorf("memory: bid %s already exists", bid.ID)
	}
	r.t.putBid(*bid, true)
	return nil
}

func (r *bidRepo) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	b, ok := r.t.bid(bidID)
	if !ok {
		return nil, fmt.Errorf("memory: get bid %s: %w", bidID, domain.ErrBidNotFound)
	}
	return &b, nil
}

func (r *bidRepo) ListBidsForListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	ids := r.t.bidIDsForListing(listingID)
	out := make([]*domain.Bid, 0, len(ids))
	for _, id := range ids {
		if b, ok := r.t.bid(id); ok {
			out = append(out, &b)
		}
	}
	// stable: equal timestamps keep insertion order
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *bidRepo) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	var out []*domain.Bid
	for _, id := range r.t.allBidIDs() {
		if b, ok := r.t.bid(id); ok && b.BidderID == bidderID {
			out = append(out, &b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *bidRepo) CountBidsByBidder(ctx context.Context, minBids int) ([]*domain.BidderActivity, error) {
	counts := make(map[string]int)
	for _, id := range r.t.allBidIDs() {
		if b, ok := r.t.bid(id); ok {
			counts[b.BidderID]++
		}
	}
	var out []*domain.BidderActivity
	for bidder, n := range counts {
		if n >= minBids {
			out = append(out, &domain.BidderActivity{BidderID: bidder, BidCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BidCount != out[j].BidCount {
			return out[i].BidCount > out[j].BidCount
		}
		return out[i].BidderID < out[j].BidderID
	})
	return out, nil
}

func (r *bidRepo) UpdateBidStatus(ctx context.Context, bidID string, status domain.BidStatus) error {
	b, ok := r.t.bid(bidID)
	if !ok {
		return fmt.Errorf("memory: update bid %s: %w", bidID, domain.ErrBidNotFound)
	}
	b.Status = status
	r.t.putBid(b, false)
	return nil
}

type orderRepo struct{ t *tx }

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, exists := r.t.orderIDForListing(order.ListingID); exists {
		return fmt.Errorf("memory: create order for listing %s: %w", order.ListingID, domain.ErrOrderExists)
	}
	r.t.putOrder(*order, true)
	return nil
}

func (r *orderRepo) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := r.t.order(orderID)
	if !ok {
		return nil, fmt.Errorf("memory: get order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return &o, nil
}

func (r *orderRepo) GetOrderByListing(ctx context.Context, listingID string) (*domain.Order, error) {
	id, ok := r.t.orderIDForListing(listingID)
	if !ok {
		return nil, fmt.Errorf("memory: get order for listing %s: %w", listingID, domain.ErrOrderNotFound)
	}
	return r.GetOrder(ctx, id)
}

func (r *orderRepo) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *orderRepo) ListOrdersBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (r *orderRepo) filter(keep func(domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	for _, o := range r.t.allOrders() {
		o := o
		if keep(o) {
			out = append(out, &o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	o, ok := r.t.order(orderID)
	if !ok {
		return fmt.Errorf("memory: update order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	o.Status = status
	o.UpdatedAt = at
	r.t.putOrder(o, false)
	return nil
}

type paymentRepo struct{ t *tx }

func (r *paymentRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	r.t.putPayment(*payment)
	return nil
}

func (r *paymentRepo) ListPaymentsForOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	ps := r.t.paymentsForOrder(orderID)
	out := make([]*domain.Payment, 0, len(ps))
	for i := range ps {
		out = append(out, &ps[i])
	}
	return out, nil
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.Repositories = (*tx)(nil)
)
