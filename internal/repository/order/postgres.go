package order

import (
	"context"
	"errors"
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

const orderColumns = `id, user_id, status, shipping_address, payment_method, note, subtotal, shipping_cost, total, payment_ref, auth_code, processed_at, created_at`

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
INSERT INTO orders (user_id, status, shipping_address, payment_method, note, subtotal, shipping_cost, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at
`, o.UserID, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.Note, o.Subtotal, o.ShippingCost, o.Total).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		r.logger.Printf("order repo: insert user_id=%d error=%v", o.UserID, err)
		return err
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		if err := tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, product_id, product_name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, o.ID, line.ProductID, line.ProductName, line.UnitPrice, line.Quantity).Scan(&line.ID); err != nil {
			r.logger.Printf("order repo: insert line order_id=%d product_id=%d error=%v", o.ID, line.ProductID, err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: created id=%d user_id=%d lines=%d total=%d", o.ID, o.UserID, len(o.Lines), o.Total)
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Printf("order repo: get id=%d error=%v", id, err)
		return nil, err
	}
	lines, err := r.linesFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *postgresRepo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC`, string(status))
}

func (r *postgresRepo) UpdatePayment(ctx context.Context, id int64, in PaymentUpdate) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders
SET status = $2, payment_ref = $3, auth_code = $4, processed_at = $5
WHERE id = $1 AND status = $6
`, id, string(in.Status), in.PaymentRef, in.AuthCode, in.ProcessedAt, string(in.From))
	if err != nil {
		r.logger.Printf("order repo: update payment id=%d error=%v", id, err)
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		r.logger.Printf("order repo: set status id=%d status=%s error=%v", id, status, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepo) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		r.logger.Printf("order repo: cas status id=%d %s->%s error=%v", id, from, to, err)
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *postgresRepo) linesFor(ctx context.Context, orderIDs []int64) (map[int64][]domain.Line, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, order_id, product_id, product_name, unit_price, quantity
FROM order_lines
WHERE order_id = ANY($1)
ORDER BY order_id, id
`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Line, len(orderIDs))
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, err
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&status,
		&o.ShippingAddress,
		&o.PaymentMethod,
		&o.Note,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Total,
		&o.PaymentRef,
		&o.AuthCode,
		&o.ProcessedAt,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	return &o, nil
}
