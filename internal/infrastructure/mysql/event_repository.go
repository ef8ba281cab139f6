package mysql

import (
	"auction-settlement/internal/domain"
	"context"
	"database/sql"
	"time"
)

// MySQLEventRepository is the analytics trail of market events.
type MySQLEventRepository struct {
	db *sql.DB
}

func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}

func (r *MySQLEventRepository) SaveMarketEvent(ctx context.Context, event *domain.MarketEvent) error {
	query := `
        INSERT INTO market_events (event_type, listing_id, bid_id, order_id, user_id, amount, occurred_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		string(event.Type), event.ListingID, nullString(event.BidID), nullString(event.OrderID),
		nullString(event.UserID), event.Amount, event.Timestamp, time.Now().UTC())
	return err
}

func (r *MySQLEventRepository) ListMarketEvents(ctx context.Context, listingID string) ([]*domain.MarketEvent, error) {
	query := `
        SELECT event_type, listing_id, bid_id, order_id, user_id, amount, occurred_at
        FROM market_events
        WHERE listing_id = ?
        ORDER BY occurred_at ASC, id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.MarketEvent
	for rows.Next() {
		var event domain.MarketEvent
		var eventType string
		var bidID, orderID, userID sql.NullString

		err := rows.Scan(&eventType, &event.ListingID, &bidID, &orderID, &userID,
			&event.Amount, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Type = domain.MarketEventType(eventType)
		event.BidID = bidID.String
		event.OrderID = orderID.String
		event.UserID = userID.String
		events = append(events, &event)
	}

	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
