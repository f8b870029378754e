package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"tienda-orders/internal/domain"
	"tienda-orders/internal/metrics"
	"tienda-orders/internal/repository/journal"
	"tienda-orders/internal/service/checkout"
)

var errMissingDeps = errors.New("httpserver: missing service dependencies")

type checkoutService interface {
	CreateOrder(ctx context.Context, in checkout.CreateInput) (*domain.Order, error)
}

type orderService interface {
	Get(ctx context.Context, id int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error)
	Cancel(ctx context.Context, id int64) (*domain.Order, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) (*domain.Order, error)
	MarkPaid(ctx context.Context, id int64) (*domain.Order, error)
	Journal(ctx context.Context, id int64) ([]journal.Entry, error)
}

// Deps holds the services behind the orders API.
type Deps struct {
	Checkout    checkoutService
	Orders      orderService
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

// buildRouter wires routes for the orders API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	router := newEngine(logger, deps.Metrics, deps.CORSOrigins)
	router.GET("/readyz", readyHandler(db))

	h := &orderHandlers{checkout: deps.Checkout, orders: deps.Orders}
	orders := router.Group("/orders")
	orders.POST("", h.create)
	orders.GET("", h.list)
	orders.GET("/:id", h.get)
	orders.GET("/:id/steps", h.steps)
	orders.POST("/:id/cancel", h.cancel)
	orders.PUT("/:id/status", h.setStatus)
	orders.POST("/:id/paid", h.markPaid)

	return router
}

func newEngine(logger *log.Logger, m *metrics.Metrics, origins []string) *gin.Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(origins)))
	router.Use(m.Middleware())

	router.GET("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
