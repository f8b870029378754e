// Package payment is the gateway the checkout talks to. It decides
// synchronously: accepted receipts carry a transaction reference and an
// authorization code, declines carry a reason.
package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"tienda-orders/internal/domain"
)

var supportedMethods = map[string]bool{
	"tarjeta":       true,
	"transferencia": true,
	"webpay":        true,
}

type Service struct {
	maxAmount int64
	logger    *log.Logger
}

func New(maxAmount int64, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{maxAmount: maxAmount, logger: logger}
}

// Authorize answers a payment request. Only malformed requests are errors;
// business declines come back as a receipt with Accepted=false.
func (s *Service) Authorize(_ context.Context, req domain.PaymentRequest) (domain.PaymentReceipt, error) {
	if req.OrderID <= 0 || req.Amount <= 0 {
		return domain.PaymentReceipt{}, fmt.Errorf("%w: orderId and amount must be positive", domain.ErrInvalidInput)
	}
	ref := uuid.NewString()
	method := strings.ToLower(strings.TrimSpace(req.Method))

	switch {
	case !supportedMethods[method]:
		return s.decline(req, ref, fmt.Sprintf("unsupported payment method %q", req.Method)), nil
	case s.maxAmount > 0 && req.Amount > s.maxAmount:
		return s.decline(req, ref, fmt.Sprintf("amount %d exceeds limit %d", req.Amount, s.maxAmount)), nil
	}

	code, err := authCode()
	if err != nil {
		return domain.PaymentReceipt{}, err
	}
	s.logger.Printf("payments: accepted order_id=%d amount=%d ref=%s", req.OrderID, req.Amount, ref)
	return domain.PaymentReceipt{Accepted: true, TransactionRef: ref, AuthCode: code}, nil
}

func (s *Service) decline(req domain.PaymentRequest, ref, reason string) domain.PaymentReceipt {
	s.logger.Printf("payments: declined order_id=%d amount=%d: %s", req.OrderID, req.Amount, reason)
	return domain.PaymentReceipt{Accepted: false, TransactionRef: ref, Reason: reason}
}

func authCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate auth code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
