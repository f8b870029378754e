package order

import (
	"context"
	"time"

	"tienda-orders/internal/domain"
)

// PaymentUpdate carries the columns written when a payment outcome is applied.
// The row is only written while it is still in From.
type PaymentUpdate struct {
	From        domain.Status
	Status      domain.Status
	PaymentRef  string
	AuthCode    string
	ProcessedAt *time.Time
}

type Repository interface {
	// Create inserts the order and its lines in one transaction and fills
	// the generated ids and timestamps.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error)
	// UpdatePayment reports false when the row is missing or no longer in
	// in.From.
	UpdatePayment(ctx context.Context, id int64, in PaymentUpdate) (bool, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) error
	// CompareAndSetStatus moves id from one status to another and reports
	// false when the row was no longer in `from`.
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error)
}
