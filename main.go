//go:generate go tool swag init -g main.go -o api_specs --outputTypes json,yaml

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctioncore/internal/chat"
	"auctioncore/internal/config"
	"auctioncore/internal/consumers/chatroom"
	"auctioncore/internal/consumers/notifier"
	"auctioncore/internal/database/auctionstore"
	"auctioncore/internal/database/db_client"
	"auctioncore/internal/database/memstore"
	"auctioncore/internal/http/http_server"
	"auctioncore/internal/notify"
	"auctioncore/internal/outcome"
	"auctioncore/internal/redis/locker"
	"auctioncore/internal/redis/redis_client"
	"auctioncore/internal/redis/redis_functions"
	"auctioncore/internal/services/auction"
	"auctioncore/internal/services/closer"
	"auctioncore/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

// @title			AuctionCore API
// @version		1.0
// @description	Bidding and auction resolution engine.
// @BasePath		/
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var pgDb *sql.DB
	var redisClient *redis.Client
	var store auction.Store

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Storage: Postgres ledger or the in-process store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pgDb, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := db_client.Migrate(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		store = auctionstore.New(pgDb)
	default:
		store = memstore.New()
	}

	// 4. Redis: leases, outcome stream and live notifications
	var leases locker.Locker = locker.NewLocal()
	if cfg.OutcomeTransport == config.TransportRedis {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}
		leases = locker.NewRedis(redisClient)
	}

	// 5. Side-effect sinks
	var sink notify.Sink
	var rooms chat.Provisioner
	if pgDb != nil {
		sink = notify.NewStore(pgDb, redisClient)
		rooms = chat.NewStore(pgDb)
	} else {
		sink = notify.NewMemory()
		rooms = chat.NewMemory()
	}

	// 6. Outcome transport and its consumers
	var publisher outcome.Publisher
	if redisClient != nil {
		name := consumerName(cfg.ConsumerName)
		publisher = outcome.NewStreamPublisher(redisClient, outcome.DefaultStream)
		go outcome.NewStreamConsumer(redisClient, outcome.DefaultStream, "notifications", name,
			notifier.New(sink), outcome.DefaultRetry).Run(ctx)
		go outcome.NewStreamConsumer(redisClient, outcome.DefaultStream, "chatrooms", name,
			chatroom.New(rooms), outcome.DefaultRetry).Run(ctx)
	} else {
		bus := outcome.NewBus(256, outcome.DefaultRetry)
		bus.Subscribe(ctx, "notifications", notifier.New(sink))
		bus.Subscribe(ctx, "chatrooms", chatroom.New(rooms))
		defer bus.Close()
		publisher = bus
	}

	// 7. Services
	auctionService := auction.NewAuctionService(store, cfg.MinBidIncrement)

	// 8. Background: expiry sweep + pre-expiry reminders
	auctionCloser := closer.New(store, publisher, leases,
		closer.WithBatchSize(cfg.SweepBatchSize),
		closer.WithParallelism(cfg.SweepParallelism),
		closer.WithLockTTL(cfg.ResolveLockTTL),
	)
	reminder := closer.NewReminder(store, sink, leases, cfg.ReminderLead, cfg.ReminderBand)
	closer.Run(ctx, cfg.SweepInterval, auctionCloser, reminder)

	// 9. WebSockets hub + per-user notification fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService)
	go func() {
		<-ctx.Done()
		Log.Info("shutting down")
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("auctioncore-%s", uuid.NewString()[:8])
}
