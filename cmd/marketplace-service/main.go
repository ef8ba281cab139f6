package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-settlement/internal/api/handlers"
	"auction-settlement/internal/api/middleware"
	"auction-settlement/internal/config"
	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/clock"
	"auction-settlement/internal/infrastructure/leader"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/internal/infrastructure/mysql"
	"auction-settlement/internal/infrastructure/redis"
	"auction-settlement/internal/infrastructure/websocket"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
)

const eventBusBuffer = 256

type backends struct {
	store          domain.Store
	locker         domain.ListingLocker
	users          domain.UserDirectory
	categories     domain.CategoryDirectory
	viewCache      domain.ListingViewCache
	publisher      domain.EventPublisher
	subscriber     domain.EventSubscriber
	leaderElection domain.LeaderElection
}

func main() {
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Starting marketplace service", "config", cfg.GetConfigString())

	minIncrement, err := decimal.NewFromString(cfg.Engine.DefaultMinIncrement)
	if err != nil {
		log.Error("Invalid engine.default_min_increment", "value", cfg.Engine.DefaultMinIncrement, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var rdb *redisClient.Client
	if cfg.UsesRedis() {
		rdb, err = utils.InitializeRedis(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var db *sql.DB
	if cfg.Engine.Store == config.StoreMySQL {
		db, err = utils.InitializeMysql(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to MySQL", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)

		if cfg.MySQL.Migrate {
			if err := mysql.Migrate(db, log); err != nil {
				log.Error("Failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	}

	b := buildBackends(cfg, rdb, db, log)
	clk := clock.NewSystem()

	// Initialize services
	listingService := services.NewListingService(b.store, b.locker, b.categories, b.users,
		b.viewCache, b.publisher, minIncrement, log)
	bidService := services.NewBidService(b.store, b.locker, b.users, b.publisher, log)
	acceptanceService := services.NewAcceptanceService(b.store, b.locker, b.publisher, log)
	orderService := services.NewOrderService(b.store, b.locker, b.publisher, log)
	sweeper := services.NewExpirySweeper(b.store, b.locker, b.publisher, b.leaderElection, clk,
		cfg.Instance.ID, cfg.Sweeper.Interval, log)

	// Websocket feed
	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(connManager, notifier, notifier, b.viewCache, log)
	wsHandler := websocket.NewWebSocketHandler(bidService, listingService, connManager, clk, log)
	wsRouter := wsHandler.Router()
	wsRouter.Use(mux.MiddlewareFunc(middleware.CORSWithLogging(log)))

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.EchoCORS())
	e.Use(middleware.RequestLogger(log))

	handlers.SetupRoutes(e, handlers.Services{
		Listings:   listingService,
		Bids:       bidService,
		Acceptance: acceptanceService,
		Orders:     orderService,
		Sweeper:    sweeper,
	}, clk, log)
	e.GET("/ws/*", echo.WrapHandler(wsRouter))

	// Start background services
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go func() {
		if err := eventListener.Start(bgCtx, b.subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(bgCtx); err != nil {
			log.Error("Failed to start expiry sweeper", "error", err)
			os.Exit(1)
		}
		go campaignForLeadership(bgCtx, b.leaderElection, cfg.Instance.ID, log)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting marketplace server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace service...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopBackground()
	if cfg.Sweeper.Enabled {
		if err := sweeper.Stop(); err != nil {
			log.Error("Failed to stop expiry sweeper", "error", err)
		}
		if err := b.leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Marketplace service stopped")
}

// buildBackends picks in-process or shared implementations per config.
func buildBackends(cfg *config.Config, rdb *redisClient.Client, db *sql.DB, log logger.Logger) backends {
	var b backends

	if db != nil {
		b.store = mysql.NewMySQLStore(db)
		directory := mysql.NewMySQLDirectory(db)
		b.users, b.categories = directory, directory
	} else {
		b.store = memory.NewStore()
		directory := memory.NewOpenDirectory()
		b.users, b.categories = directory, directory
	}

	if cfg.Engine.Lock == config.LockRedis {
		b.locker = redis.NewRedisListingLocker(rdb, cfg.Engine.LockTTL, cfg.Engine.LockWait)
	} else {
		b.locker = memory.NewKeyedLocker()
	}

	if cfg.Events.Enabled {
		b.publisher = redis.NewEventPublisher(rdb, cfg.Events.Channel)
		b.subscriber = redis.NewRedisEventSubscriber(rdb, cfg.Events.Channel, log)
	} else {
		bus := memory.NewEventBus(eventBusBuffer, log)
		b.publisher, b.subscriber = bus, bus
	}

	if rdb != nil {
		b.viewCache = redis.NewRedisViewCache(rdb, cfg.Engine.ViewCacheTTL)
		b.leaderElection = leader.NewRedisLeaderElection(rdb, "", cfg.Leader.TTL)
	} else {
		b.viewCache = memory.NewViewCache(cfg.Engine.ViewCacheTTL)
		b.leaderElection = memory.NewLocalLeader()
	}
	return b
}

// campaignForLeadership keeps trying to take the sweeper lease.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became sweeper leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
