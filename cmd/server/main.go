package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/handler/rpc"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/scheduler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/platform/observability"
	"github.com/rl1809/storefront/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := observability.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("setup telemetry: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, observability.Enabled(cfg))
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	// Storage
	var store port.Store
	var db *sql.DB
	switch cfg.StorageDriver {
	case config.DriverMySQL:
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		store = mysqlAdapter
		logger.Info("connected to mysql")
	default:
		store = storage.NewMemoryAdapter()
		logger.Warn("using in-memory storage; data is lost on restart")
	}

	// Cache
	var cache port.CacheRepository
	var rdb *redis.Client
	switch cfg.CacheDriver {
	case config.DriverRedis:
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		cache = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	default:
		cache = storage.NewMemoryCache()
		logger.Warn("using in-memory cache")
	}

	// Notification delivery
	var sink port.NotificationSink = messaging.NoopNotificationSink{}
	var kafkaSink *messaging.KafkaNotificationSink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := messaging.NewTracedProducer(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, otel.GetTracerProvider())
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		kafkaSink = messaging.NewKafkaNotificationSink(producer)
		sink = kafkaSink
		logger.Info("publishing notifications to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaNotificationTopic),
		)
	}

	// Services
	notificationService := service.NewNotificationService(store, sink, logger)
	restockNotifier := service.NewRestockNotifier(store, notificationService, logger, cfg.RestockQueueSize)
	restockNotifier.Start(ctx, cfg.RestockWorkers)
	logger.Info("started restock workers", zap.Int("workers", cfg.RestockWorkers))

	orderService := service.NewOrderService(store, cache, restockNotifier, logger)
	rankingService := service.NewRankingService(store, cache, logger, nil)

	// Scheduled jobs
	jobs := scheduler.New(logger, cfg.JobTimeout)
	if err := jobs.Register(cfg.RankingCron, service.NewSalesRankingJob(store, rankingService, logger)); err != nil {
		logger.Fatal("failed to schedule ranking job", zap.Error(err))
	}
	if err := jobs.Register(cfg.ReorderCron, service.NewStockReorderJob(store, cache, notificationService, logger, nil)); err != nil {
		logger.Fatal("failed to schedule reorder job", zap.Error(err))
	}
	jobs.Start()

	// gRPC server
	grpcServer := grpc.NewServer()
	rpc.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	app := handler.NewApp(handler.NewHTTPHandler(handler.Services{
		Orders:        orderService,
		Products:      service.NewProductService(store, restockNotifier, logger),
		Subscriptions: service.NewSubscriptionService(store, logger),
		Notifications: notificationService,
		Sellers:       service.NewSellerService(store, logger),
		Ranking:       rankingService,
	}), logger)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	jobs.Stop(shutdownCtx)
	logger.Info("scheduler stopped")

	// Pending restock facts are drained before connections close.
	restockNotifier.Close()
	logger.Info("restock workers stopped")

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("close kafka producer", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("connections closed")

	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", zap.Error(err))
	}
}
