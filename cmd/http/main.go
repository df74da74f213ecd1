package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fsanano/vending/internal/broker"
	"fsanano/vending/internal/config"
	"fsanano/vending/internal/handler"
	"fsanano/vending/internal/obs"
	"fsanano/vending/internal/repository"
	"fsanano/vending/internal/service"

	"go.uber.org/zap"
)

// store is what both services need from a repository.
type store interface {
	service.InventoryStore
	service.BalanceStore
	service.MarketStore
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Setup storage
	ctx := context.Background()
	var repo store
	purchaseOpts := []service.PurchaseOption{service.WithTimeout(cfg.StoreTimeout)}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dbPool, err := repository.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbPool.Close()

		pg := repository.NewVendingRepository(dbPool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		repo = pg
		purchaseOpts = append(purchaseOpts, service.WithTransactor(pg))
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		repo = repository.NewMemoryRepository()
	}

	// 3. Setup events
	if cfg.NATSURL != "" {
		publisher, err := broker.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		purchaseOpts = append(purchaseOpts, service.WithEvents(publisher))
	} else {
		purchaseOpts = append(purchaseOpts, service.WithEvents(broker.Nop{}))
	}

	// 4. Setup logic
	purchases := service.NewPurchaseService(repo, repo, logger, purchaseOpts...)
	market := service.NewMarketService(repo, logger)
	if cfg.AdminUsername != "" {
		if _, err := market.EnsureAdmin(ctx, cfg.AdminUsername); err != nil {
			logger.Fatal("failed to provision admin", zap.Error(err))
		}
	}
	h := handler.NewHandler(purchases, market, handler.NewAuthenticator(cfg.JWTSecret), logger)

	// 5. Setup server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 6. Run server with graceful shutdown
	go func() {
		logger.Info("starting server", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server exiting")
}
