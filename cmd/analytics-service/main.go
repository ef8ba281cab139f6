package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-settlement/internal/config"
	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/mysql"
	"auction-settlement/internal/infrastructure/redis"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
)

// AnalyticsService records every market event for offline reporting.
type AnalyticsService struct {
	subscriber domain.EventSubscriber
	eventRepo  *mysql.MySQLEventRepository
	log        logger.Logger
}

func NewAnalyticsService(subscriber domain.EventSubscriber, eventRepo *mysql.MySQLEventRepository, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		subscriber: subscriber,
		eventRepo:  eventRepo,
		log:        log,
	}
}

func (as *AnalyticsService) Start(ctx context.Context) error {
	as.log.Info("Starting analytics service")

	return as.subscriber.SubscribeToMarketEvents(ctx, func(event *domain.MarketEvent) error {
		as.log.Debug("Storing market event", "type", event.Type, "listing_id", event.ListingID)
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return as.eventRepo.SaveMarketEvent(saveCtx, event)
	})
}

func main() {
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := utils.InitializeMysql(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.MySQL.Migrate {
		if err := mysql.Migrate(db, log); err != nil {
			log.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, cfg.Events.Channel, log)
	eventRepo := mysql.NewMySQLEventRepository(db)

	analyticsService := NewAnalyticsService(eventSubscriber, eventRepo, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start service
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := analyticsService.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Analytics service failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down analytics service...")
	stop()
	<-done
	log.Info("Analytics service stopped")
}
