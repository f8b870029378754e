package directory

import (
	"context"
	"net/http"

	"tienda-orders/internal/domain"
)

// PaymentClient initiates payments on the payment gateway.
type PaymentClient struct {
	*httpClient
	fallback domain.PaymentReceipt
}

// NewPaymentClient falls back to a declined receipt.
func NewPaymentClient(opts Options) *PaymentClient {
	return &PaymentClient{
		httpClient: newHTTPClient("payments", opts),
		fallback:   domain.PaymentReceipt{Accepted: false, Reason: "payment gateway unavailable"},
	}
}

func (c *PaymentClient) Initiate(ctx context.Context, req domain.PaymentRequest) Result[domain.PaymentReceipt] {
	var receipt domain.PaymentReceipt
	status, err := c.do(ctx, "initiate", http.MethodPost, "/payments", req, &receipt)
	if err == nil && status != http.StatusOK && status != http.StatusCreated {
		// 404/409 from a gateway means a misrouted call, not a decline.
		err = errDependency
	}
	if err != nil {
		c.logger.Printf("payments client: initiate order_id=%d amount=%d unavailable: %v", req.OrderID, req.Amount, err)
		c.observe(OutcomeUnavailable)
		return unavailable(c.fallback, err)
	}
	c.observe(OutcomeOK)
	return ok(receipt)
}
