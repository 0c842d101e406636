package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
)

var _ orders.Repository = (*Store)(nil)

func copyOrder(o orders.Order) *orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	if o.CourierLocation != nil {
		loc := *o.CourierLocation
		o.CourierLocation = &loc
	}
	return &o
}

// PutOrder stores o as is, bypassing every check. Tests use it to set up
// orders in a given state.
func (s *Store) PutOrder(o orders.Order, p orders.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[o.ID] = *copyOrder(o)
	p.OrderID = o.ID
	s.st.payments[o.ID] = p
}

func (s *Store) Create(ctx context.Context, o *orders.Order, p *orders.Payment) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if _, ok := s.st.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s exists", orders.ErrConflict, o.ID)
	}
	if o.ExternalID != "" {
		for _, cur := range s.st.orders {
			if cur.ExternalID == o.ExternalID {
				return fmt.Errorf("%w: external_id %s exists", orders.ErrConflict, o.ExternalID)
			}
		}
	}
	s.st.orders[o.ID] = *copyOrder(*o)
	s.st.payments[o.ID] = *p
	return nil
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*orders.Order, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	for _, o := range s.st.orders {
		if o.ExternalID == externalID {
			return copyOrder(o), nil
		}
	}
	return nil, orders.ErrNotFound
}

func (s *Store) Get(ctx context.Context, id string) (*orders.Order, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	o, ok := s.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("get order %s for update: no transaction in context", id)
	}
	return s.Get(ctx, id)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, from, to orders.Status) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	o, ok := s.st.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		return fmt.Errorf("%w: %s is no longer %s", orders.ErrConflict, id, from)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.st.orders[id] = o
	return nil
}

func (s *Store) GetPayment(ctx context.Context, orderID string) (*orders.Payment, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	p, ok := s.st.payments[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SavePayment(ctx context.Context, p *orders.Payment) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	if _, ok := s.st.payments[p.OrderID]; !ok {
		return orders.ErrNotFound
	}
	s.st.payments[p.OrderID] = *p
	return nil
}

func (s *Store) ClaimPayment(ctx context.Context, orderID string, method orders.PaymentMethod) (*orders.Payment, error) {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	p, ok := s.st.payments[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if p.Status != orders.PaymentNew && p.Status != orders.PaymentFailed {
		return nil, fmt.Errorf("%w: order %s has no open payment", orders.ErrPaymentClosed, orderID)
	}
	p.Status = orders.PaymentPending
	p.Method = method
	p.ErrorMessage = ""
	s.st.payments[orderID] = p
	return &p, nil
}

func (s *Store) SettlePayment(ctx context.Context, p *orders.Payment) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	cur, ok := s.st.payments[p.OrderID]
	if !ok {
		return orders.ErrNotFound
	}
	if cur.Status != orders.PaymentPending {
		return fmt.Errorf("%w: payment of %s is no longer pending", orders.ErrPaymentClosed, p.OrderID)
	}
	cur.Status = p.Status
	cur.PaidAt = p.PaidAt
	cur.ErrorMessage = p.ErrorMessage
	s.st.payments[p.OrderID] = cur
	return nil
}

func (s *Store) UpdateCourierLocation(ctx context.Context, id string, loc orders.Location) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	o, ok := s.st.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != orders.StatusDelivering {
		return fmt.Errorf("%w: %s is not delivering", orders.ErrConflict, id)
	}
	o.CourierLocation = &loc
	s.st.orders[id] = o
	return nil
}

func (s *Store) List(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []orders.Order
	for _, o := range s.st.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.FloristID != "" && o.FloristID != f.FloristID {
			continue
		}
		if f.CourierID != "" && o.CourierID != f.CourierID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.CustomerID != "" {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.DeliveryAt.Equal(b.DeliveryAt) {
			return a.DeliveryAt.Before(b.DeliveryAt)
		}
		return a.ID < b.ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
