package seed

import (
	"context"
	"errors"
	"fmt"

	"tienda-orders/internal/domain"
	usersvc "tienda-orders/internal/service/user"
)

type userCreator interface {
	Create(ctx context.Context, in usersvc.CreateInput) (*domain.User, error)
}

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Apply inserts demo users and products for manual testing. Re-running it
// keeps existing users and refreshes product data and stock.
func Apply(ctx context.Context, users userCreator, products productWriter) error {
	inactive := false
	userSeeds := []usersvc.CreateInput{
		{Name: "Ana Rojas", Email: "ana@example.com"},
		{Name: "Bruno Díaz", Email: "bruno@example.com"},
		{Name: "Carla Soto", Email: "carla@example.com", Active: &inactive},
	}
	for _, u := range userSeeds {
		if _, err := users.Create(ctx, u); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
	}

	productSeeds := []domain.Product{
		{SKU: "POL-ALG-M", Name: "Polera algodón M", Description: "Polera de algodón orgánico", UnitPrice: 9990, Stock: 25, Active: true},
		{SKU: "TAZ-CER-01", Name: "Taza cerámica", Description: "Taza de 350 ml", UnitPrice: 4500, Stock: 40, Active: true},
		{SKU: "MOC-URB-20", Name: "Mochila urbana", Description: "Mochila de 20 litros", UnitPrice: 25000, Stock: 8, Active: true},
		{SKU: "PAR-INV-L", Name: "Parka invierno L", Description: "Parka impermeable", UnitPrice: 59990, Stock: 3, Active: true},
		{SKU: "GOR-LAN-01", Name: "Gorro de lana", Description: "Descontinuado", UnitPrice: 7000, Stock: 0, Active: false},
	}
	for _, p := range productSeeds {
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}

	return nil
}
