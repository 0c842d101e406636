package catalog

import (
	"context"

	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader is what the order engine needs from the catalog.
type Reader interface {
	GetBouquets(ctx context.Context, ids []string) (map[string]Bouquet, error)
	GetComponent(ctx context.Context, id string) (Component, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Reader = (*Repo)(nil)

func (r *Repo) GetBouquets(ctx context.Context, ids []string) (map[string]Bouquet, error) {
	out := make(map[string]Bouquet, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := postgres.Conn(ctx, r.DB)

	rows, err := db.Query(ctx, `SELECT id, name, price, is_active FROM bouquets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var b Bouquet
		if err := rows.Scan(&b.ID, &b.Name, &b.Price, &b.IsActive); err != nil {
			rows.Close()
			return nil, err
		}
		out[b.ID] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query(ctx, `
		SELECT bc.bouquet_id, c.id, c.kind, c.name, c.unit_price, bc.amount
		FROM bouquet_components bc
		JOIN components c ON c.id = bc.component_id
		WHERE bc.bouquet_id = ANY($1)
		ORDER BY bc.bouquet_id, c.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bouquetID string
			l         Link
		)
		if err := rows.Scan(&bouquetID, &l.Component.ID, &l.Component.Kind, &l.Component.Name, &l.Component.UnitPrice, &l.Amount); err != nil {
			return nil, err
		}
		b := out[bouquetID]
		b.Links = append(b.Links, l)
		out[bouquetID] = b
	}
	return out, rows.Err()
}

func (r *Repo) GetComponent(ctx context.Context, id string) (Component, error) {
	var c Component
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx,
		`SELECT id, kind, name, unit_price FROM components WHERE id=$1`, id,
	).Scan(&c.ID, &c.Kind, &c.Name, &c.UnitPrice)
	if postgres.IsNoRows(err) {
		return c, ErrNotFound
	}
	return c, err
}
