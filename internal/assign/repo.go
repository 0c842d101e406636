package assign

import (
	"context"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func (r *Repo) ActiveWorkers(ctx context.Context, role auth.Role) ([]Worker, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx,
		`SELECT id, email, role, is_active FROM users WHERE role=$1 AND is_active ORDER BY id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Worker
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, &w.Email, &w.Role, &w.Active); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) FloristLoads(ctx context.Context) (map[string]int, error) {
	return r.loads(ctx, `
		SELECT florist_id, count(*) FROM orders
		WHERE florist_id IS NOT NULL AND status='paid'
		GROUP BY florist_id`)
}

func (r *Repo) CourierLoads(ctx context.Context) (map[string]int, error) {
	return r.loads(ctx, `
		SELECT courier_id, count(*) FROM orders
		WHERE courier_id IS NOT NULL AND status IN ('ready', 'delivering')
		GROUP BY courier_id`)
}

func (r *Repo) loads(ctx context.Context, q string) (map[string]int, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (r *Repo) FloristCandidates(ctx context.Context, from, to time.Time) ([]Candidate, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT id, delivery_at, updated_at FROM orders
		WHERE status='paid' AND florist_id IS NULL AND delivery_at BETWEEN $1 AND $2
		ORDER BY delivery_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return scanCandidates(rows)
}

func (r *Repo) CourierCandidates(ctx context.Context) ([]Candidate, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT id, delivery_at, updated_at FROM orders
		WHERE status='ready' AND courier_id IS NULL
		ORDER BY updated_at, id`)
	if err != nil {
		return nil, err
	}
	return scanCandidates(rows)
}

func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.OrderID, &c.DeliveryAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Assignment is a compare-and-set on the empty worker column, so a second
// scheduler instance racing on the same order loses cleanly.
func (r *Repo) AssignFlorist(ctx context.Context, orderID, floristID string) error {
	return r.bind(ctx, `
		UPDATE orders SET florist_id=$2, updated_at=now()
		WHERE id=$1 AND status='paid' AND florist_id IS NULL`, orderID, floristID)
}

func (r *Repo) AssignCourier(ctx context.Context, orderID, courierID string) error {
	return r.bind(ctx, `
		UPDATE orders SET courier_id=$2, updated_at=now()
		WHERE id=$1 AND status='ready' AND courier_id IS NULL`, orderID, courierID)
}

func (r *Repo) bind(ctx context.Context, q, orderID, workerID string) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, q, orderID, workerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrAlreadyAssigned
	}
	return nil
}
