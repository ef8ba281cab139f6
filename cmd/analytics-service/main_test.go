package main

import (
	"context"
	"testing"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/internal/infrastructure/mysql"
	"auction-settlement/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsService_StoresEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := logger.NewNop()
	bus := memory.NewEventBus(8, log)
	service := NewAnalyticsService(bus, mysql.NewMySQLEventRepository(db), log)

	mock.ExpectExec(`INSERT INTO market_events`).
		WithArgs("listing_expired", "l1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()

	require.Eventually(t, func() bool {
		_ = bus.PublishMarketEvent(context.Background(), &domain.MarketEvent{
			Type: domain.EventListingExpired, ListingID: "l1", Timestamp: time.Now().UTC(),
		})
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 20*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
