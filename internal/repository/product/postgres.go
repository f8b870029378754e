package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"tienda-orders/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id, sku, name, COALESCE(description, ''), unit_price, stock, active, created_at`

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, err
	}
	r.logger.Printf("product repo: list count=%d", len(result))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get id=%d not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%d error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (sku, name, description, unit_price, stock, active)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    unit_price = EXCLUDED.unit_price,
    stock = EXCLUDED.stock,
    active = EXCLUDED.active
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		product.SKU,
		product.Name,
		product.Description,
		product.UnitPrice,
		product.Stock,
		product.Active,
	))
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s error=%v", product.SKU, err)
		return nil, err
	}
	r.logger.Printf("product repo: upserted sku=%s id=%d stock=%d", p.SKU, p.ID, p.Stock)
	return p, nil
}

func (r *postgresRepo) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	const q = `
UPDATE products
SET stock = stock + $2
WHERE id = $1 AND stock + $2 >= 0
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id, delta))
	if err == nil {
		r.logger.Printf("product repo: adjust stock id=%d delta=%d stock=%d", id, delta, p.Stock)
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("product repo: adjust stock id=%d delta=%d error=%v", id, delta, err)
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	r.logger.Printf("product repo: adjust stock id=%d delta=%d refused", id, delta)
	return nil, fmt.Errorf("%w: product %d", domain.ErrInsufficientStock, id)
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.UnitPrice, &p.Stock, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
