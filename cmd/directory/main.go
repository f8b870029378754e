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
	"tienda-orders/internal/httpserver"
	"tienda-orders/internal/metrics"
	productrepo "tienda-orders/internal/repository/product"
	userrepo "tienda-orders/internal/repository/user"
	paymentsvc "tienda-orders/internal/service/payment"
	productsvc "tienda-orders/internal/service/product"
	usersvc "tienda-orders/internal/service/user"
	"tienda-orders/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[directory] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName+"-directory", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalf("setup tracer: %v", err)
	}

	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	srv, err := httpserver.NewDirectory(cfg.DirectoryAddr, logger, dbpool, httpserver.DirectoryDeps{
		Users:       usersvc.New(userrepo.NewPostgres(dbpool, logger)),
		Products:    productsvc.New(productrepo.NewPostgres(dbpool, logger)),
		Payments:    paymentsvc.New(cfg.PaymentMaxAmount, logger),
		Metrics:     metrics.New("directory"),
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting directory server on %s", cfg.DirectoryAddr)
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
