package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"tienda-orders/internal/domain"
	"tienda-orders/internal/metrics"
)

type userService interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error)
}

type paymentService interface {
	Authorize(ctx context.Context, req domain.PaymentRequest) (domain.PaymentReceipt, error)
}

// DirectoryDeps holds the services behind the directory server.
type DirectoryDeps struct {
	Users       userService
	Products    productService
	Payments    paymentService
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

type stockRequest struct {
	Delta *int `json:"delta" binding:"required"`
}

func buildDirectoryRouter(logger *log.Logger, db *pgxpool.Pool, deps DirectoryDeps) *gin.Engine {
	router := newEngine(logger, deps.Metrics, deps.CORSOrigins)
	router.GET("/readyz", readyHandler(db))

	router.GET("/users/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		u, err := deps.Users.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u.Snapshot())
	})

	router.GET("/products", func(c *gin.Context) {
		products, err := deps.Products.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(products), "results": products})
	})

	router.GET("/products/:id", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := deps.Products.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p.Snapshot())
	})

	router.PATCH("/products/:id/stock", func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req stockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "delta required")
			return
		}
		p, err := deps.Products.AdjustStock(c.Request.Context(), id, *req.Delta)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				c.JSON(http.StatusConflict, errorResponse{Error: "insufficient_stock", Reason: err.Error()})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p.Snapshot())
	})

	router.POST("/payments", func(c *gin.Context) {
		var req domain.PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "malformed payment body: "+err.Error())
			return
		}
		receipt, err := deps.Payments.Authorize(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	})

	return router
}
