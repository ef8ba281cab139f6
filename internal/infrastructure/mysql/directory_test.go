package mysql

import (
	"context"
	"testing"

	"auction-settlement/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMySQLDirectory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dir := NewMySQLDirectory(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT 1 FROM categories WHERE id = \?`).WithArgs("cat1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM categories WHERE id = \?`).WithArgs("cat9").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(`SELECT is_active FROM users WHERE id = \?`).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery(`SELECT is_active FROM users WHERE id = \?`).WithArgs("banned").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
	mock.ExpectQuery(`SELECT is_active FROM users WHERE id = \?`).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	ok, err := dir.CategoryExists(ctx, "cat1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = dir.CategoryExists(ctx, "cat9")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = dir.IsValidUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = dir.IsValidUser(ctx, "banned")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = dir.IsValidUser(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLEventRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMySQLEventRepository(db)
	ctx := context.Background()
	amount := decimal.NewFromInt(110)

	mock.ExpectExec(`INSERT INTO market_events`).
		WithArgs("bid_placed", "l1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), t0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.SaveMarketEvent(ctx, &domain.MarketEvent{
		Type: domain.EventBidPlaced, ListingID: "l1", BidID: "b1", UserID: "alice", Amount: &amount, Timestamp: t0,
	}))

	mock.ExpectQuery(`SELECT (.+) FROM market_events`).WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "listing_id", "bid_id", "order_id", "user_id", "amount", "occurred_at"}).
			AddRow("bid_placed", "l1", "b1", nil, "alice", "110.00", t0).
			AddRow("listing_expired", "l1", nil, nil, nil, nil, t0))
	events, err := repo.ListMarketEvents(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "b1", events[0].BidID)
	require.Empty(t, events[0].OrderID)
	require.True(t, events[0].Amount.Equal(amount))
	require.Equal(t, domain.EventListingExpired, events[1].Type)
	require.Nil(t, events[1].Amount)

	require.NoError(t, mock.ExpectationsWereMet())
}
