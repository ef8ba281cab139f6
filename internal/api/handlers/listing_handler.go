package handlers

import (
	"net/http"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ListingHandler struct {
	listings *services.ListingService
	bids     *services.BidService
	clock    domain.Clock
	log      logger.Logger
}

type CreateListingRequest struct {
	CategoryID    string           `json:"category_id" validate:"required,max=64"`
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=5000"`
	StartingPrice decimal.Decimal  `json:"starting_price"`
	MinIncrement  *decimal.Decimal `json:"min_increment"`
	AuctionEndAt  time.Time        `json:"auction_end_at" validate:"required"`
}

// UpdateListingRequest omits status; withdrawal has its own endpoint.
type UpdateListingRequest struct {
	CategoryID    *string          `json:"category_id" validate:"omitempty,max=64"`
	Title         *string          `json:"title" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	StartingPrice *decimal.Decimal `json:"starting_price"`
	MinIncrement  *decimal.Decimal `json:"min_increment"`
	AuctionEndAt  *time.Time       `json:"auction_end_at"`
}

func NewListingHandler(listings *services.ListingService, bids *services.BidService,
	clock domain.Clock, log logger.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		bids:     bids,
		clock:    clock,
		log:      log,
	}
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}

	var req CreateListingRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	listing, err := h.listings.CreateListing(c.Request().Context(), services.CreateListingInput{
		SellerID:      sellerID,
		CategoryID:    req.CategoryID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		AuctionEndAt:  req.AuctionEndAt,
	}, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, newListingResponse(&domain.ListingView{Listing: listing}))
}

func (h *ListingHandler) ListListings(c echo.Context) error {
	filter := domain.ListingFilter{
		SellerID:   c.QueryParam("seller_id"),
		CategoryID: c.QueryParam("category_id"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := domain.ParseListingStatus(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown status " + raw, Field: "status"})
		}
		filter.Status = &status
	}

	views, err := h.listings.ListListings(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]listingResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newListingResponse(v))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	view, err := h.listings.GetListingView(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newListingResponse(view))
}

func (h *ListingHandler) MinimumBid(c echo.Context) error {
	listingID := c.Param("id")
	minimum, err := h.bids.MinimumBid(c.Request().Context(), listingID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"listing_id":  listingID,
		"minimum_bid": minimum.StringFixed(2),
	})
}

func (h *ListingHandler) ListListingBids(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	bids, err := h.listings.ListListingBids(c.Request().Context(), c.Param("id"), sellerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newBidResponses(bids))
}

func (h *ListingHandler) UpdateListing(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}

	var req UpdateListingRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	listing, err := h.listings.UpdateListing(c.Request().Context(), c.Param("id"), sellerID, services.UpdateListingInput{
		CategoryID:    req.CategoryID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		AuctionEndAt:  req.AuctionEndAt,
	}, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newListingResponse(&domain.ListingView{Listing: listing}))
}

func (h *ListingHandler) WithdrawListing(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	listing, err := h.listings.WithdrawListing(c.Request().Context(), c.Param("id"), sellerID, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, newListingResponse(&domain.ListingView{Listing: listing}))
}

func (h *ListingHandler) SellerBidStats(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	stats, err := h.listings.SellerBidStats(c.Request().Context(), sellerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]sellerBidStatResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, sellerBidStatResponse{
			ListingID: s.ListingID,
			Title:     s.Title,
			BidCount:  s.BidCount,
			MaxBid:    s.MaxBid.StringFixed(2),
			AvgBid:    s.AvgBid.StringFixed(2),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ListingHandler) ActiveWithoutBids(c echo.Context) error {
	listings, err := h.listings.ActiveWithoutBids(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]quietListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, quietListingResponse{ID: l.ID, Title: l.Title, AuctionEndAt: l.AuctionEndAt})
	}
	return c.JSON(http.StatusOK, out)
}
