package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tienda-orders/internal/config"
	"tienda-orders/internal/db"
	"tienda-orders/internal/directory"
	"tienda-orders/internal/domain"
	"tienda-orders/internal/httpserver"
	"tienda-orders/internal/idempotency"
	"tienda-orders/internal/messaging"
	"tienda-orders/internal/messaging/kafka"
	"tienda-orders/internal/metrics"
	journalrepo "tienda-orders/internal/repository/journal"
	orderrepo "tienda-orders/internal/repository/order"
	checkoutsvc "tienda-orders/internal/service/checkout"
	ordersvc "tienda-orders/internal/service/order"
	"tienda-orders/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalf("setup tracer: %v", err)
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	m := metrics.New("orders")
	clientOpts := func(baseURL string) directory.Options {
		return directory.Options{BaseURL: baseURL, Timeout: cfg.ClientTimeout, Logger: logger, Metrics: m}
	}
	users := directory.NewUserClient(clientOpts(cfg.UsersURL))
	products := directory.NewProductClient(clientOpts(cfg.ProductsURL))
	payments := directory.NewPaymentClient(clientOpts(cfg.PaymentsURL))

	var publisher messaging.Publisher = messaging.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		logger.Printf("publishing order events to kafka brokers %v", cfg.KafkaBrokers)
	}

	var keys idempotency.Store
	if cfg.RedisAddr != "" {
		rs := idempotency.NewRedisStore(cfg.RedisAddr, cfg.ServiceName, cfg.IdempotencyTTL)
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			logger.Printf("redis at %s not reachable, idempotency keys will be retried per request: %v", cfg.RedisAddr, err)
		}
		keys = rs
	}

	shipping := domain.ShippingPolicy{FreeThreshold: cfg.FreeShippingThreshold, Fee: cfg.ShippingFee}
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	journalRepo := journalrepo.NewPostgres(dbpool)

	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Users:       users,
		Products:    products,
		Payments:    payments,
		Orders:      orderRepo,
		Journal:     journalRepo,
		Publisher:   publisher,
		Idempotency: keys,
		Metrics:     m,
		Shipping:    shipping,
		Timeout:     cfg.CheckoutTimeout,
		Logger:      logger,
	})
	orderService := ordersvc.New(ordersvc.Deps{
		Orders:    orderRepo,
		Users:     users,
		Products:  products,
		Journal:   journalRepo,
		Publisher: publisher,
		Metrics:   m,
		Shipping:  shipping,
		Logger:    logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Checkout:    checkoutService,
		Orders:      orderService,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Printf("tracer shutdown: %v", err)
	}
}
