package product

import (
	"context"
	"fmt"

	"tienda-orders/internal/domain"
	productrepo "tienda-orders/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product id must be positive", domain.ErrInvalidInput)
	}
	return s.repo.GetByID(ctx, id)
}

// AdjustStock applies a signed delta. Decrements that would take stock below
// zero are refused with domain.ErrInsufficientStock and change nothing.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product id must be positive", domain.ErrInvalidInput)
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", domain.ErrInvalidInput)
	}
	return s.repo.AdjustStock(ctx, id, delta)
}
