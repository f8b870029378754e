package product

import (
	"context"

	"tienda-orders/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	// AdjustStock applies delta atomically and refuses with
	// domain.ErrInsufficientStock when the result would be negative.
	AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error)
}
