package handlers

import (
	"net/http"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Services groups the engine operations exposed over HTTP.
type Services struct {
	Listings   *services.ListingService
	Bids       *services.BidService
	Acceptance *services.AcceptanceService
	Orders     *services.OrderService
	Sweeper    domain.ExpiryScheduler
}

func SetupRoutes(e *echo.Echo, svc Services, clock domain.Clock, log logger.Logger) {
	e.Validator = NewRequestValidator()

	listingHandler := NewListingHandler(svc.Listings, svc.Bids, clock, log)
	bidHandler := NewBidHandler(svc.Bids, svc.Acceptance, clock, log)
	orderHandler := NewOrderHandler(svc.Orders, clock, log)
	adminHandler := NewAdminHandler(svc.Sweeper, clock, log)

	api := e.Group("/api/v1")

	api.POST("/listings", listingHandler.CreateListing)
	api.GET("/listings", listingHandler.ListListings)
	api.GET("/listings/:id", listingHandler.GetListing)
	api.PATCH("/listings/:id", listingHandler.UpdateListing)
	api.GET("/listings/:id/minimum-bid", listingHandler.MinimumBid)
	api.GET("/listings/:id/bids", listingHandler.ListListingBids)
	api.POST("/listings/:id/withdraw", listingHandler.WithdrawListing)

	api.POST("/bids", bidHandler.PlaceBid)
	api.GET("/bids/me", bidHandler.MyBids)
	api.GET("/bids/me/outbid", bidHandler.MyOutbidBids)
	api.POST("/bids/:id/accept", bidHandler.AcceptBid)
	api.POST("/bids/:id/reject", bidHandler.RejectBid)

	api.POST("/payments", orderHandler.Pay)
	api.GET("/orders/me", orderHandler.MyOrders)
	api.GET("/orders/sales", orderHandler.MySales)
	api.GET("/orders/:id", orderHandler.GetOrder)
	api.GET("/orders/:id/payments", orderHandler.ListPayments)
	api.POST("/orders/:id/cancel", orderHandler.CancelOrder)

	api.GET("/analytics/seller-bid-stats", listingHandler.SellerBidStats)
	api.GET("/analytics/active-without-bids", listingHandler.ActiveWithoutBids)
	api.GET("/analytics/top-bidders", bidHandler.TopBidders)
	api.POST("/admin/sweep", adminHandler.Sweep)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "marketplace",
			"timestamp": clock.Now().Format(time.RFC3339),
		})
	})
}
