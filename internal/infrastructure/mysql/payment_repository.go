package mysql

import (
	"auction-settlement/internal/domain"
	"context"

	sq "github.com/Masterminds/squirrel"
)

var paymentColumns = []string{"id", "order_id", "provider", "reference", "amount", "processed_at"}

type MySQLPaymentRepository struct {
	q  queryer
	sb sq.StatementBuilderType
}

func (r *MySQLPaymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query, args, err := r.sb.Insert("payments").Columns(paymentColumns...).
		Values(payment.ID, payment.OrderID, payment.Provider, payment.Reference,
			payment.Amount, payment.ProcessedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLPaymentRepository) ListPaymentsForOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	query, args, err := r.sb.Select(paymentColumns...).From("payments").
		Where(sq.Eq{"order_id": orderID}).OrderBy("processed_at").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Reference, &p.Amount, &p.ProcessedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
