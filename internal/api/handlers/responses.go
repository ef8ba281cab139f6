package handlers

import (
	"time"

	"auction-settlement/internal/domain"
)

type listingResponse struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	CategoryID    string    `json:"category_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartingPrice string    `json:"starting_price"`
	MinIncrement  string    `json:"min_increment"`
	AuctionEndAt  time.Time `json:"auction_end_at"`
	Status        string    `json:"status"`
	HighestBid    *string   `json:"highest_bid"`
	BidCount      int       `json:"bid_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func newListingResponse(view *domain.ListingView) listingResponse {
	l := view.Listing
	resp := listingResponse{
		ID:            l.ID,
		SellerID:      l.SellerID,
		CategoryID:    l.CategoryID,
		Title:         l.Title,
		Description:   l.Description,
		StartingPrice: l.StartingPrice.StringFixed(2),
		MinIncrement:  l.MinIncrement.StringFixed(2),
		AuctionEndAt:  l.AuctionEndAt,
		Status:        l.Status.String(),
		BidCount:      view.BidCount,
		CreatedAt:     l.CreatedAt,
	}
	if view.HighestBid != nil {
		highest := view.HighestBid.StringFixed(2)
		resp.HighestBid = &highest
	}
	return resp
}

type bidResponse struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newBidResponse(b *domain.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID,
		ListingID: b.ListingID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.StringFixed(2),
		Status:    b.Status.String(),
		CreatedAt: b.CreatedAt,
	}
}

func newBidResponses(bids []*domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, newBidResponse(b))
	}
	return out
}

type outbidBidResponse struct {
	bidResponse
	MaxAmount string `json:"max_amount"`
}

func newOutbidBidResponses(outbid []*domain.OutbidBid) []outbidBidResponse {
	out := make([]outbidBidResponse, 0, len(outbid))
	for _, o := range outbid {
		out = append(out, outbidBidResponse{
			bidResponse: newBidResponse(o.Bid),
			MaxAmount:   o.MaxAmount.StringFixed(2),
		})
	}
	return out
}

type orderResponse struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	BidID       string    `json:"bid_id"`
	BuyerID     string    `json:"buyer_id"`
	SellerID    string    `json:"seller_id"`
	TotalAmount string    `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		ListingID:   o.ListingID,
		BidID:       o.BidID,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Status:      o.Status.String(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func newOrderResponses(orders []*domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	return out
}

type paymentResponse struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Provider    string    `json:"provider"`
	Reference   string    `json:"reference"`
	Amount      string    `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

func newPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Provider:    p.Provider,
		Reference:   p.Reference,
		Amount:      p.Amount.StringFixed(2),
		ProcessedAt: p.ProcessedAt,
	}
}

type sellerBidStatResponse struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
	BidCount  int    `json:"bid_count"`
	MaxBid    string `json:"max_bid"`
	AvgBid    string `json:"avg_bid"`
}

type quietListingResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AuctionEndAt time.Time `json:"auction_end_at"`
}

type bidderActivityResponse struct {
	BidderID string `json:"bidder_id"`
	BidCount int    `json:"bid_count"`
}
