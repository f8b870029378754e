package directory

import (
	"context"
	"fmt"
	"net/http"

	"tienda-orders/internal/domain"
)

// ProductClient reads product snapshots and mutates stock on the products service.
type ProductClient struct {
	*httpClient
	fallback domain.ProductSnapshot
}

// NewProductClient falls back to an inactive product with zero stock.
func NewProductClient(opts Options) *ProductClient {
	return &ProductClient{
		httpClient: newHTTPClient("products", opts),
		fallback:   domain.ProductSnapshot{Active: false, Stock: 0},
	}
}

func (c *ProductClient) Get(ctx context.Context, id int64) Result[domain.ProductSnapshot] {
	var product domain.ProductSnapshot
	status, err := c.do(ctx, "get", http.MethodGet, fmt.Sprintf("/products/%d", id), nil, &product)
	if err == nil && status != http.StatusOK && status != http.StatusNotFound {
		err = fmt.Errorf("%w: get returned %d", errDependency, status)
	}
	if err != nil {
		c.logger.Printf("products client: get id=%d unavailable, using fallback: %v", id, err)
		c.observe(OutcomeUnavailable)
		return unavailable(c.stub(id), err)
	}
	if status == http.StatusNotFound {
		c.observe(OutcomeNotFound)
		return notFound(c.stub(id))
	}
	c.observe(OutcomeOK)
	return ok(product)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

// AdjustStock applies a signed delta (negative reserves, positive releases).
// An unreachable service is a logged no-op reported as OutcomeUnavailable;
// the only error is domain.ErrInsufficientStock when the products service
// refuses a decrement that would go below zero.
func (c *ProductClient) AdjustStock(ctx context.Context, id int64, delta int) (Result[domain.ProductSnapshot], error) {
	var product domain.ProductSnapshot
	status, err := c.do(ctx, "adjust_stock", http.MethodPatch, fmt.Sprintf("/products/%d/stock", id), stockRequest{Delta: delta}, &product)
	if err != nil {
		c.logger.Printf("products client: WARN adjust stock id=%d delta=%d skipped: %v", id, delta, err)
		c.observe(OutcomeUnavailable)
		return unavailable(c.stub(id), err), nil
	}
	switch status {
	case http.StatusNotFound:
		c.observe(OutcomeNotFound)
		return notFound(c.stub(id)), nil
	case http.StatusConflict:
		c.observe(OutcomeOK)
		return Result[domain.ProductSnapshot]{}, fmt.Errorf("%w: product %d cannot absorb delta %d", domain.ErrInsufficientStock, id, delta)
	}
	c.observe(OutcomeOK)
	return ok(product), nil
}

func (c *ProductClient) stub(id int64) domain.ProductSnapshot {
	s := c.fallback
	s.ID = id
	return s
}
