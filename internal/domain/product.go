package domain

import "time"

// Product is the catalog row owned by the products service.
type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UnitPrice   int64     `json:"unitPrice"`
	Stock       int       `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Snapshot returns the view the checkout works with.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, Stock: p.Stock, Active: p.Active}
}
