package handlers

import (
	"net/http"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orders *services.OrderService
	clock  domain.Clock
	log    logger.Logger
}

type PayRequest struct {
	OrderID  string `json:"order_id" validate:"required,max=64"`
	Provider string `json:"provider" validate:"omitempty,max=32"`
}

func NewOrderHandler(orders *services.OrderService, clock domain.Clock, log logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, clock: clock, log: log}
}

func (h *OrderHandler) Pay(c echo.Context) error {
	payerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}

	var req PayRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	payment, err := h.orders.Pay(c.Request().Context(), req.OrderID, payerID, req.Provider, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, newPaymentResponse(payment))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	order, err := h.orders.GetOrder(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *OrderHandler) ListPayments(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	payments, err := h.orders.ListPayments(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, newPaymentResponse(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) MyOrders(c echo.Context) error {
	buyerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	orders, err := h.orders.ListBuyerOrders(c.Request().Context(), buyerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newOrderResponses(orders))
}

func (h *OrderHandler) MySales(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	orders, err := h.orders.ListSellerOrders(c.Request().Context(), sellerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newOrderResponses(orders))
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	order, err := h.orders.CancelOrder(c.Request().Context(), c.Param("id"), sellerID, h.clock.Now())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, newOrderResponse(order))
}
