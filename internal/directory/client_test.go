package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"tienda-orders/internal/domain"
)

func fakeDirectory(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		if c.Param("id") == "409" {
			c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
			return
		}
		if c.Param("id") != "1" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, domain.UserSnapshot{ID: 1, Name: "Ana", Email: "ana@example.com", Active: true})
	})
	router.GET("/products/:id", func(c *gin.Context) {
		switch c.Param("id") {
		case "10":
			c.JSON(http.StatusOK, domain.ProductSnapshot{ID: 10, Name: "Polera", UnitPrice: 9990, Stock: 10, Active: true})
		case "500":
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		case "409":
			c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		}
	})
	router.PATCH("/products/:id/stock", func(c *gin.Context) {
		var req stockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		if req.Delta < -10 {
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
			return
		}
		c.JSON(http.StatusOK, domain.ProductSnapshot{ID: 10, Name: "Polera", UnitPrice: 9990, Stock: 10 + req.Delta, Active: true})
	})
	router.POST("/payments", func(c *gin.Context) {
		var req domain.PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, domain.PaymentReceipt{Accepted: req.Amount <= 1000, TransactionRef: "tx-1", AuthCode: "654321"})
	})
	return httptest.NewServer(router)
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestUserClientGet(t *testing.T) {
	srv := fakeDirectory(t)
	defer srv.Close()
	client := NewUserClient(Options{BaseURL: srv.URL})

	res := client.Get(context.Background(), 1)
	if !res.OK() || res.Value.Name != "Ana" || !res.Value.Active {
		t.Fatalf("unexpected result %+v", res)
	}

	res = client.Get(context.Background(), 2)
	if res.Outcome != OutcomeNotFound || res.Value.Active {
		t.Fatalf("expected not found, got %+v", res)
	}

	res = client.Get(context.Background(), 409)
	if res.Outcome != OutcomeUnavailable || res.Err == nil || res.Value.ID != 409 {
		t.Fatalf("unexpected status must degrade to the fallback stub, got %+v", res)
	}
}

func TestUserClientFallbackWhenUnreachable(t *testing.T) {
	client := NewUserClient(Options{BaseURL: deadURL(t), Timeout: time.Second})
	res := client.Get(context.Background(), 1)
	if res.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable, got %+v", res)
	}
	if res.Value.Active || res.Value.ID != 1 {
		t.Fatalf("expected inactive stub, got %+v", res.Value)
	}
	if res.Err == nil {
		t.Fatalf("expected transport error to be kept for logging")
	}
}

func TestProductClientGet(t *testing.T) {
	srv := fakeDirectory(t)
	defer srv.Close()
	client := NewProductClient(Options{BaseURL: srv.URL})

	res := client.Get(context.Background(), 10)
	if !res.OK() || res.Value.Stock != 10 || res.Value.UnitPrice != 9990 {
		t.Fatalf("unexpected result %+v", res)
	}

	res = client.Get(context.Background(), 500)
	if res.Outcome != OutcomeUnavailable || res.Value.Active || res.Value.Stock != 0 {
		t.Fatalf("5xx must degrade to the fallback stub, got %+v", res)
	}

	res = client.Get(context.Background(), 99)
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}

	res = client.Get(context.Background(), 409)
	if res.Outcome != OutcomeUnavailable || res.Err == nil || res.Value.Active {
		t.Fatalf("unexpected status must degrade to the fallback stub, got %+v", res)
	}
}

func TestProductClientAdjustStock(t *testing.T) {
	srv := fakeDirectory(t)
	defer srv.Close()
	client := NewProductClient(Options{BaseURL: srv.URL})

	res, err := client.AdjustStock(context.Background(), 10, -2)
	if err != nil || !res.OK() || res.Value.Stock != 8 {
		t.Fatalf("unexpected adjust result %+v err=%v", res, err)
	}

	_, err = client.AdjustStock(context.Background(), 10, -11)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestProductClientAdjustStockNoopWhenUnreachable(t *testing.T) {
	client := NewProductClient(Options{BaseURL: deadURL(t), Timeout: time.Second})
	res, err := client.AdjustStock(context.Background(), 10, -1)
	if err != nil {
		t.Fatalf("outage must not surface as an error, got %v", err)
	}
	if res.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable outcome, got %+v", res)
	}
}

func TestPaymentClientInitiate(t *testing.T) {
	srv := fakeDirectory(t)
	defer srv.Close()
	client := NewPaymentClient(Options{BaseURL: srv.URL})

	res := client.Initiate(context.Background(), domain.PaymentRequest{OrderID: 1, Amount: 500, Method: "tarjeta"})
	if !res.OK() || !res.Value.Accepted || res.Value.AuthCode != "654321" {
		t.Fatalf("unexpected receipt %+v", res)
	}

	res = client.Initiate(context.Background(), domain.PaymentRequest{OrderID: 1, Amount: 5000, Method: "tarjeta"})
	if !res.OK() || res.Value.Accepted {
		t.Fatalf("expected business decline, got %+v", res)
	}
}

func TestPaymentClientFallbackWhenUnreachable(t *testing.T) {
	client := NewPaymentClient(Options{BaseURL: deadURL(t), Timeout: time.Second})
	res := client.Initiate(context.Background(), domain.PaymentRequest{OrderID: 1, Amount: 500})
	if res.Outcome != OutcomeUnavailable || res.Value.Accepted {
		t.Fatalf("expected declined fallback, got %+v", res)
	}
}
