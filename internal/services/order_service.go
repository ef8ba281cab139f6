package services

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPaymentProvider is recorded when the payer names none. Settlement
// is mocked and always succeeds once preconditions hold.
const DefaultPaymentProvider = "MOCK"

// paymentReferencePrefix marks every reference as issued by the mock
// settlement, whichever provider the payer named.
const paymentReferencePrefix = "MOCK"

type OrderService struct {
	store  domain.Store
	locker domain.ListingLocker
	events eventEmitter
	log    logger.Logger
}

func NewOrderService(store domain.Store, locker domain.ListingLocker,
	eventPub domain.EventPublisher, log logger.Logger) *OrderService {
	return &OrderService{
		store:  store,
		locker: locker,
		events: eventEmitter{publisher: eventPub, log: log},
		log:    log,
	}
}

// Pay settles an order exactly once. It runs under the lock of the order's
// listing so concurrent payers observe each other's commit.
func (s *OrderService) Pay(ctx context.Context, orderID, payerID, provider string, now time.Time) (*domain.Payment, error) {
	switch {
	case orderID == "":
		return nil, domain.NewValidationError("order_id", "is required")
	case payerID == "":
		return nil, domain.NewValidationError("payer_id", "is required")
	}
	provider = strings.ToUpper(strings.TrimSpace(provider))
	if provider == "" {
		provider = DefaultPaymentProvider
	}

	found, err := s.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var payment *domain.Payment
	err = mutateListing(ctx, s.locker, s.store, found.ListingID, func(tx domain.Repositories) error {
		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != payerID {
			return domain.ErrNotOwner
		}
		switch order.Status {
		case domain.OrderPaid:
			return domain.ErrOrderAlreadyPaid
		case domain.OrderCancelled:
			return fmt.Errorf("order %s is %s: %w", orderID, order.Status, domain.ErrOrderNotPayable)
		}

		payment = &domain.Payment{
			ID:          utils.GenerateID("payment"),
			OrderID:     orderID,
			Provider:    provider,
			Reference:   fmt.Sprintf("%s-%s-%d", paymentReferencePrefix, orderID, now.Unix()),
			Amount:      order.TotalAmount,
			ProcessedAt: now,
		}
		if err := tx.Payments().CreatePayment(ctx, payment); err != nil {
			return err
		}
		return tx.Orders().UpdateOrderStatus(ctx, orderID, domain.OrderPaid, now)
	})
	if err != nil {
		s.log.Debug("Payment refused", "order_id", orderID, "payer_id", payerID, "error", err)
		return nil, err
	}

	s.log.Info("Order paid", "order_id", orderID, "payment_id", payment.ID,
		"amount", payment.Amount.String(), "provider", provider)

	amount := payment.Amount
	s.events.emit(ctx, &domain.MarketEvent{
		Type:      domain.EventOrderPaid,
		ListingID: found.ListingID,
		BidID:     found.BidID,
		OrderID:   orderID,
		UserID:    found.SellerID,
		Amount:    &amount,
		Timestamp: now,
	})
	return payment, nil
}

// CancelOrder lets the seller abandon an unpaid order. The listing stays SOLD.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, sellerID string, now time.Time) (*domain.Order, error) {
	switch {
	case orderID == "":
		return nil, domain.NewValidationError("order_id", "is required")
	case sellerID == "":
		return nil, domain.NewValidationError("seller_id", "is required")
	}
	found, err := s.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var cancelled *domain.Order
	err = mutateListing(ctx, s.locker, s.store, found.ListingID, func(tx domain.Repositories) error {
		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			return domain.ErrNotOwner
		}
		switch order.Status {
		case domain.OrderPaid:
			return domain.ErrOrderAlreadyPaid
		case domain.OrderCancelled:
			return fmt.Errorf("order %s is %s: %w", orderID, order.Status, domain.ErrOrderNotPayable)
		}
		if err := tx.Orders().UpdateOrderStatus(ctx, orderID, domain.OrderCancelled, now); err != nil {
			return err
		}
		order.Status = domain.OrderCancelled
		order.UpdatedAt = now
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Order cancelled", "order_id", orderID, "listing_id", cancelled.ListingID)
	s.events.emit(ctx, &domain.MarketEvent{
		Type:      domain.EventOrderCancelled,
		ListingID: cancelled.ListingID,
		OrderID:   orderID,
		UserID:    cancelled.BuyerID,
		Timestamp: now,
	})
	return cancelled, nil
}

// GetOrder is visible to the order's buyer and seller only.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domain.ErrNotOwner
	}
	return order, nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	if buyerID == "" {
		return nil, domain.NewValidationError("buyer_id", "is required")
	}
	return s.store.Orders().ListOrdersByBuyer(ctx, buyerID)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	if sellerID == "" {
		return nil, domain.NewValidationError("seller_id", "is required")
	}
	return s.store.Orders().ListOrdersBySeller(ctx, sellerID)
}

func (s *OrderService) ListPayments(ctx context.Context, orderID, userID string) ([]*domain.Payment, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.store.Payments().ListPaymentsForOrder(ctx, orderID)
}
