package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, "storefront-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	m := metrics.New()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var cache repository.OrderCache
	if cfg.Features.EnableOrderCaching {
		redisCache := repository.NewRedisOrderCache(cfg.Redis, logger)
		defer redisCache.Close()
		cache = redisCache
	}

	var publisher service.EventPublisher
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var notifier service.NotificationSender
	if cfg.Features.EnableNotifications {
		notifier = clients.NewHTTPNotificationClient(cfg.NotificationService, logger)
	}

	orderService := service.NewOrderService(store, cache, publisher, notifier, m, cfg, logger)
	productService := service.NewProductService(store, logger)
	userService := service.NewUserService(store, tokens, logger)

	h := handlers.NewHandlers(orderService, productService, userService, store, cfg, logger)
	srv := server.New(h, tokens, userService, m, cfg, logger)

	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("enable_order_caching", cfg.Features.EnableOrderCaching),
			zap.Bool("enable_order_events", cfg.Features.EnableOrderEvents),
			zap.Bool("enable_payment_events", cfg.Features.EnablePaymentEvents),
			zap.Bool("server_side_pricing", cfg.Features.ServerSidePricing),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentEvents {
		consumer = events.NewKafkaConsumer(cfg.Kafka, orderService, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumer failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, error) {
	switch cfg.Store.Driver {
	case "mongo":
		return repository.NewMongoStore(ctx, cfg.Mongo, logger)
	case "postgres":
		return repository.NewPostgresStore(ctx, cfg.Database, logger)
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
