package mysql

import (
	"auction-settlement/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var orderColumns = []string{
	"id", "listing_id", "bid_id", "buyer_id", "seller_id", "total_amount",
	"status", "created_at", "updated_at",
}

// MySQLOrderRepository relies on a unique key on listing_id for the one
// order per listing rule.
type MySQLOrderRepository struct {
	q  queryer
	sb sq.StatementBuilderType
}

func (r *MySQLOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query, args, err := r.sb.Insert("orders").Columns(orderColumns...).
		Values(order.ID, order.ListingID, order.BidID, order.BuyerID, order.SellerID,
			order.TotalAmount, int(order.Status), order.CreatedAt, order.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("mysql: create order for listing %s: %w", order.ListingID, domain.ErrOrderExists)
		}
		return err
	}
	return nil
}

func (r *MySQLOrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.get(ctx, sq.Eq{"id": orderID}, orderID)
}

func (r *MySQLOrderRepository) GetOrderByListing(ctx context.Context, listingID string) (*domain.Order, error) {
	return r.get(ctx, sq.Eq{"listing_id": listingID}, "for listing "+listingID)
}

func (r *MySQLOrderRepository) get(ctx context.Context, where sq.Eq, label string) (*domain.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).From("orders").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	order, err := scanOrder(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mysql: get order %s: %w", label, domain.ErrOrderNotFound)
	}
	return order, err
}

func (r *MySQLOrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return r.query(ctx, sq.Eq{"buyer_id": buyerID})
}

func (r *MySQLOrderRepository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	return r.query(ctx, sq.Eq{"seller_id": sellerID})
}

func (r *MySQLOrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	query, args, err := r.sb.Update("orders").
		Set("status", int(status)).
		Set("updated_at", at).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	found, err := exists(ctx, r.q, r.sb, "orders", orderID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("mysql: update order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return nil
}

func (r *MySQLOrderRepository) query(ctx context.Context, where sq.Eq) ([]*domain.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).From("orders").
		Where(where).OrderBy("created_at DESC", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var status int

	err := row.Scan(&order.ID, &order.ListingID, &order.BidID, &order.BuyerID, &order.SellerID,
		&order.TotalAmount, &status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	return &order, nil
}
