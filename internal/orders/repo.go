package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, o *Order, p *Payment) error
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate locks the order row until the transaction in ctx ends.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves the order from -> to and fails with ErrConflict
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	GetPayment(ctx context.Context, orderID string) (*Payment, error)
	SavePayment(ctx context.Context, p *Payment) error
	// ClaimPayment moves a new or failed payment to pending with method and
	// fails with ErrPaymentClosed when it is in any other state.
	ClaimPayment(ctx context.Context, orderID string, method PaymentMethod) (*Payment, error)
	// SettlePayment writes p only while the stored payment is still pending
	// and fails with ErrPaymentClosed otherwise.
	SettlePayment(ctx context.Context, p *Payment) error
	UpdateCourierLocation(ctx context.Context, id string, loc Location) error
	List(ctx context.Context, f Filter) ([]Order, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

const orderColumns = `id, COALESCE(external_id, ''), customer_id, status, COALESCE(florist_id, ''), COALESCE(courier_id, ''),
	delivery_at, total_cost, delivery_cost, delivery_distance, delivery_address, delivery_lat, delivery_lon,
	courier_lat, courier_lon, courier_updated_at, recipient_name, recipient_phone, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, o *Order, p *Payment) error {
	db := postgres.Conn(ctx, r.DB)
	var ext any
	if o.ExternalID != "" {
		ext = o.ExternalID
	}
	_, err := db.Exec(ctx, `
		INSERT INTO orders(id, external_id, customer_id, status, delivery_at, total_cost, delivery_cost,
			delivery_distance, delivery_address, delivery_lat, delivery_lon, recipient_name, recipient_phone,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, ext, o.CustomerID, o.Status, o.DeliveryAt, o.TotalCost, o.DeliveryCost,
		o.DeliveryDistance, o.Address.Name, o.Address.Lat, o.Address.Lon, o.Recipient.Name, o.Recipient.Phone,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := db.Exec(ctx, `
			INSERT INTO order_items(order_id, bouquet_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)`, o.ID, it.BouquetID, it.Quantity, it.UnitPrice); err != nil {
			return err
		}
	}
	_, err = db.Exec(ctx, `
		INSERT INTO payments(order_id, amount, status, method, error_message)
		VALUES ($1,$2,$3,$4,$5)`, p.OrderID, p.Amount, p.Status, p.Method, p.ErrorMessage)
	return err
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID)
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *Repo) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	if !postgres.InTx(ctx) {
		return nil, fmt.Errorf("get order %s for update: no transaction in context", id)
	}
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *Repo) getOne(ctx context.Context, q string, arg string) (*Order, error) {
	db := postgres.Conn(ctx, r.DB)
	o, err := scanOrder(db.QueryRow(ctx, q, arg))
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) items(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, `
		SELECT order_id, bouquet_id, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, bouquet_id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]OrderItem{}
	for rows.Next() {
		var (
			orderID string
			it      OrderItem
		)
		if err := rows.Scan(&orderID, &it.BouquetID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx,
		`UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s is no longer %s", ErrConflict, id, from)
	}
	return nil
}

func (r *Repo) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `
		SELECT order_id, amount, status, method, paid_at, error_message
		FROM payments WHERE order_id=$1`, orderID,
	).Scan(&p.OrderID, &p.Amount, &p.Status, &p.Method, &p.PaidAt, &p.ErrorMessage)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) SavePayment(ctx context.Context, p *Payment) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `
		UPDATE payments SET amount=$2, status=$3, method=$4, paid_at=$5, error_message=$6
		WHERE order_id=$1`, p.OrderID, p.Amount, p.Status, p.Method, p.PaidAt, p.ErrorMessage)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ClaimPayment(ctx context.Context, orderID string, method PaymentMethod) (*Payment, error) {
	var p Payment
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `
		UPDATE payments SET status=$2, method=$3, error_message=''
		WHERE order_id=$1 AND status IN ($4, $5)
		RETURNING order_id, amount, status, method, paid_at, error_message`,
		orderID, PaymentPending, method, PaymentNew, PaymentFailed,
	).Scan(&p.OrderID, &p.Amount, &p.Status, &p.Method, &p.PaidAt, &p.ErrorMessage)
	if postgres.IsNoRows(err) {
		return nil, fmt.Errorf("%w: order %s has no open payment", ErrPaymentClosed, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) SettlePayment(ctx context.Context, p *Payment) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `
		UPDATE payments SET status=$2, paid_at=$3, error_message=$4
		WHERE order_id=$1 AND status=$5`,
		p.OrderID, p.Status, p.PaidAt, p.ErrorMessage, PaymentPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: payment of %s is no longer pending", ErrPaymentClosed, p.OrderID)
	}
	return nil
}

func (r *Repo) UpdateCourierLocation(ctx context.Context, id string, loc Location) error {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `
		UPDATE orders SET courier_lat=$2, courier_lon=$3, courier_updated_at=$4
		WHERE id=$1 AND status=$5`, id, loc.Lat, loc.Lon, loc.UpdatedAt, StatusDelivering)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s is not delivering", ErrConflict, id)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id=$%d", f.CustomerID)
	}
	if f.FloristID != "" {
		add("florist_id=$%d", f.FloristID)
	}
	if f.CourierID != "" {
		add("courier_id=$%d", f.CourierID)
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		add("status = ANY($%d)", ss)
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	// customers see newest first, workers see soonest delivery first
	if f.CustomerID != "" {
		q += " ORDER BY created_at DESC"
	} else {
		q += " ORDER BY delivery_at, id"
	}
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := postgres.Conn(ctx, r.DB).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		out []Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		cLat, cLon *float64
		cAt        *time.Time
	)
	err := row.Scan(&o.ID, &o.ExternalID, &o.CustomerID, &o.Status, &o.FloristID, &o.CourierID,
		&o.DeliveryAt, &o.TotalCost, &o.DeliveryCost, &o.DeliveryDistance, &o.Address.Name, &o.Address.Lat, &o.Address.Lon,
		&cLat, &cLon, &cAt, &o.Recipient.Name, &o.Recipient.Phone, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cLat != nil && cLon != nil {
		loc := Location{Lat: *cLat, Lon: *cLon}
		if cAt != nil {
			loc.UpdatedAt = *cAt
		}
		o.CourierLocation = &loc
	}
	return &o, nil
}
