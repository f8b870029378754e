package journal

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO checkout_steps (order_id, request_id, step, status, detail)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := r.pool.Exec(ctx, q, e.OrderID, e.RequestID, string(e.Step), string(e.Status), e.Detail)
	return err
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID int64) ([]Entry, error) {
	const q = `
SELECT id, order_id, request_id, step, status, detail, created_at
FROM checkout_steps
WHERE order_id = $1
   OR request_id IN (SELECT request_id FROM checkout_steps WHERE order_id = $1)
ORDER BY id
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e            Entry
			step, status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.RequestID, &step, &status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Step = Step(step)
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
