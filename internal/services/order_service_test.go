package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-settlement/internal/domain"

	"github.com/stretchr/testify/require"
)

func settledOrder(t *testing.T, h *harness) *domain.Order {
	t.Helper()
	listing := h.openListing(t, "100", "5")
	h.bid(t, listing.ID, "alice", "100", t0.Add(time.Minute))
	winner := h.bid(t, listing.ID, "bob", "110", t0.Add(2*time.Minute))
	order, err := h.acceptance.AcceptBid(context.Background(), winner.ID, "seller1", t0.Add(3*time.Minute))
	require.NoError(t, err)
	return order
}

func TestOrderService_Pay_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)
	paidAt := t0.Add(4 * time.Minute)

	payment, err := h.orders.Pay(ctx, order.ID, "bob", "", paidAt)
	require.NoError(t, err)
	require.True(t, payment.Amount.Equal(dec("110")))
	require.Equal(t, DefaultPaymentProvider, payment.Provider)
	require.Equal(t, fmt.Sprintf("MOCK-%s-%d", order.ID, paidAt.Unix()), payment.Reference)
	require.Equal(t, paidAt, payment.ProcessedAt)

	stored, err := h.orders.GetOrder(ctx, order.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.OrderPaid, stored.Status)

	_, err = h.orders.Pay(ctx, order.ID, "bob", "", t0.Add(5*time.Minute))
	require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)

	payments, err := h.orders.ListPayments(ctx, order.ID, "seller1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Len(t, h.events.ofType(domain.EventOrderPaid), 1)
}

func TestOrderService_Pay_ReferenceIgnoresProvider(t *testing.T) {
	h := newHarness(t)
	order := settledOrder(t, h)
	paidAt := t0.Add(4 * time.Minute)

	payment, err := h.orders.Pay(context.Background(), order.ID, "bob", " stripe ", paidAt)
	require.NoError(t, err)
	require.Equal(t, "STRIPE", payment.Provider)
	require.Equal(t, fmt.Sprintf("MOCK-%s-%d", order.ID, paidAt.Unix()), payment.Reference)
}

func TestOrderService_Pay_ConcurrentCallsSettleOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orders.Pay(ctx, order.ID, "bob", "card", t0.Add(4*time.Minute))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	payments, err := h.store.Payments().ListPaymentsForOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, "CARD", payments[0].Provider)
}

func TestOrderService_Pay_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)

	_, err := h.orders.Pay(ctx, order.ID, "alice", "", t0)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = h.orders.Pay(ctx, "order_missing", "bob", "", t0)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = h.orders.Pay(ctx, "", "bob", "", t0)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.orders.Pay(ctx, order.ID, "", "", t0)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestOrderService_CancelOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)

	_, err := h.orders.CancelOrder(ctx, order.ID, "bob", t0.Add(4*time.Minute))
	require.ErrorIs(t, err, domain.ErrNotOwner)

	cancelled, err := h.orders.CancelOrder(ctx, order.ID, "seller1", t0.Add(4*time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, cancelled.Status)
	require.Equal(t, domain.ListingSold, h.listingStatus(t, order.ListingID))

	_, err = h.orders.Pay(ctx, order.ID, "bob", "", t0.Add(5*time.Minute))
	require.ErrorIs(t, err, domain.ErrOrderNotPayable)

	_, err = h.orders.CancelOrder(ctx, order.ID, "seller1", t0.Add(5*time.Minute))
	require.ErrorIs(t, err, domain.ErrOrderNotPayable)

	cancelledEvents := h.events.ofType(domain.EventOrderCancelled)
	require.Len(t, cancelledEvents, 1)
	require.Equal(t, "bob", cancelledEvents[0].UserID)
}

func TestOrderService_CancelPaidOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)

	_, err := h.orders.Pay(ctx, order.ID, "bob", "", t0.Add(4*time.Minute))
	require.NoError(t, err)

	_, err = h.orders.CancelOrder(ctx, order.ID, "seller1", t0.Add(5*time.Minute))
	require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
}

func TestOrderService_Listings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := settledOrder(t, h)

	_, err := h.orders.GetOrder(ctx, order.ID, "alice")
	require.ErrorIs(t, err, domain.ErrNotOwner)

	bought, err := h.orders.ListBuyerOrders(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bought, 1)
	require.Equal(t, order.ID, bought[0].ID)

	sold, err := h.orders.ListSellerOrders(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, sold, 1)

	none, err := h.orders.ListBuyerOrders(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = h.orders.ListSellerOrders(ctx, "")
	require.ErrorIs(t, err, domain.ErrValidation)
}
