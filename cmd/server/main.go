package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/adapter/handler"
	"github.com/shopengine/orderflow/internal/adapter/sender"
	"github.com/shopengine/orderflow/internal/adapter/storage"
	"github.com/shopengine/orderflow/internal/config"
	"github.com/shopengine/orderflow/internal/core/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	store := storage.NewMySQLStore(db)
	guard := storage.NewRedisGuard(rdb)
	pushSender := sender.NewHTTPPushSender(cfg.PushEndpoint, cfg.PushAPIKey, cfg.DispatchTimeout)
	emailSender := sender.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)

	// Core services
	dispatcher := service.NewDispatcher(store, store, guard, pushSender, emailSender,
		cfg.DispatchQueueSize, cfg.DispatchTimeout, logger)
	dispatcher.Start(cfg.DispatchWorkers)
	logger.Info("started dispatch workers", zap.Int("workers", cfg.DispatchWorkers))

	ledger := service.NewStockLedger(store, logger)
	carts := service.NewCartService(store, store, logger)
	orders := service.NewOrderService(store, store, store, ledger, dispatcher, cfg.Shipping, logger)

	// HTTP server
	mux := http.NewServeMux()
	httpHandler := handler.NewHTTPHandler(carts, orders, ledger, logger)
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	// Drain queued side effects before closing connections.
	dispatcher.Close()
	logger.Info("dispatch workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
