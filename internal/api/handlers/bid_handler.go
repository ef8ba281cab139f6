package handlers

import (
	"net/http"
	"strconv"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type BidHandler struct {
	bids       *services.BidService
	acceptance *services.AcceptanceService
	clock      domain.Clock
	log        logger.Logger
}

type PlaceBidRequest struct {
	ListingID string          `json:"listing_id" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
}

func NewBidHandler(bids *services.BidService, acceptance *services.AcceptanceService,
	clock domain.Clock, log logger.Logger) *BidHandler {
	return &BidHandler{
		bids:       bids,
		acceptance: acceptance,
		clock:      clock,
		log:        log,
	}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	bidderID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}

	var req PlaceBidRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	bid, err := h.bids.PlaceBid(c.Request().Context(), req.ListingID, bidderID, req.Amount, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, newBidResponse(bid))
}

func (h *BidHandler) MyBids(c echo.Context) error {
	bidderID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	bids, err := h.bids.ListBidderBids(c.Request().Context(), bidderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newBidResponses(bids))
}

func (h *BidHandler) MyOutbidBids(c echo.Context) error {
	bidderID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	outbid, err := h.bids.OutbidBids(c.Request().Context(), bidderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newOutbidBidResponses(outbid))
}

func (h *BidHandler) AcceptBid(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	order, err := h.acceptance.AcceptBid(c.Request().Context(), c.Param("id"), sellerID, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, newOrderResponse(order))
}

func (h *BidHandler) RejectBid(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	bid, err := h.acceptance.RejectBid(c.Request().Context(), c.Param("id"), sellerID, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newBidResponse(bid))
}

func (h *BidHandler) TopBidders(c echo.Context) error {
	minBids := 2
	if raw := c.QueryParam("min_bids"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "min_bids must be an integer", Field: "min_bids"})
		}
		minBids = n
	}

	activity, err := h.bids.TopBidders(c.Request().Context(), minBids)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]bidderActivityResponse, 0, len(activity))
	for _, a := range activity {
		out = append(out, bidderActivityResponse{BidderID: a.BidderID, BidCount: a.BidCount})
	}
	return c.JSON(http.StatusOK, out)
}
