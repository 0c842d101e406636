package stock

import (
	"context"

	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func (r *Repo) LockAvailable(ctx context.Context, componentID string) ([]Batch, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT id, component_id, delivery_date, remaining, status, COALESCE(batch_number, '')
		FROM stock_batches
		WHERE component_id=$1 AND status='available' AND remaining > 0
		ORDER BY delivery_date, id
		FOR UPDATE`, componentID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

func (r *Repo) UpdateBatch(ctx context.Context, b Batch) error {
	_, err := postgres.Conn(ctx, r.DB).Exec(ctx,
		`UPDATE stock_batches SET remaining=$2, status=$3 WHERE id=$1`,
		b.ID, b.Remaining, b.Status)
	return err
}

func (r *Repo) InsertBatch(ctx context.Context, b *Batch) error {
	var number any
	if b.BatchNumber != "" {
		number = b.BatchNumber
	}
	return postgres.Conn(ctx, r.DB).QueryRow(ctx, `
		INSERT INTO stock_batches(component_id, delivery_date, remaining, status, batch_number)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		b.ComponentID, b.DeliveryDate, b.Remaining, b.Status, number,
	).Scan(&b.ID)
}

func (r *Repo) LogMovements(ctx context.Context, ms []Movement) error {
	if len(ms) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range ms {
		var ref any
		if m.ReferenceID != "" {
			ref = m.ReferenceID
		}
		batch.Queue(`
			INSERT INTO stock_movements(id, batch_id, component_id, reference_id, quantity_change,
				remaining_before, remaining_after, reason, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.BatchID, m.ComponentID, ref, m.QuantityChange,
			m.RemainingBefore, m.RemainingAfter, m.Reason, m.CreatedAt)
	}
	br := postgres.Conn(ctx, r.DB).SendBatch(ctx, batch)
	defer br.Close()
	for range ms {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) AvailableTotals(ctx context.Context, componentIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(componentIDs))
	if len(componentIDs) == 0 {
		return out, nil
	}
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT component_id, COALESCE(SUM(remaining), 0)
		FROM stock_batches
		WHERE component_id = ANY($1) AND status='available' AND remaining > 0
		GROUP BY component_id`, componentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			total float64
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

func (r *Repo) ListBatches(ctx context.Context, componentID string) ([]Batch, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT id, component_id, delivery_date, remaining, status, COALESCE(batch_number, '')
		FROM stock_batches WHERE component_id=$1
		ORDER BY delivery_date, id`, componentID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

func scanBatches(rows pgx.Rows) ([]Batch, error) {
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ComponentID, &b.DeliveryDate, &b.Remaining, &b.Status, &b.BatchNumber); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
