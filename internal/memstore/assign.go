package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
)

var _ assign.Repository = (*Store)(nil)

func (s *Store) AddWorker(w assign.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.workers[w.ID] = w
}

func (s *Store) ActiveWorkers(ctx context.Context, role auth.Role) ([]assign.Worker, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []assign.Worker
	for _, w := range s.st.workers {
		if w.Role == role && w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) loads(ctx context.Context, worker func(orders.Order) string, statuses ...orders.Status) map[string]int {
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := map[string]int{}
	for _, o := range s.st.orders {
		id := worker(o)
		if id == "" {
			continue
		}
		for _, st := range statuses {
			if o.Status == st {
				out[id]++
				break
			}
		}
	}
	return out
}

func (s *Store) FloristLoads(ctx context.Context) (map[string]int, error) {
	return s.loads(ctx, func(o orders.Order) string { return o.FloristID }, orders.StatusPaid), nil
}

func (s *Store) CourierLoads(ctx context.Context) (map[string]int, error) {
	return s.loads(ctx, func(o orders.Order) string { return o.CourierID }, orders.StatusReady, orders.StatusDelivering), nil
}

func (s *Store) FloristCandidates(ctx context.Context, from, to time.Time) ([]assign.Candidate, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []assign.Candidate
	for _, o := range s.st.orders {
		if o.Status != orders.StatusPaid || o.FloristID != "" {
			continue
		}
		if o.DeliveryAt.Before(from) || o.DeliveryAt.After(to) {
			continue
		}
		out = append(out, assign.Candidate{OrderID: o.ID, DeliveryAt: o.DeliveryAt, UpdatedAt: o.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeliveryAt.Equal(out[j].DeliveryAt) {
			return out[i].DeliveryAt.Before(out[j].DeliveryAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (s *Store) CourierCandidates(ctx context.Context) ([]assign.Candidate, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []assign.Candidate
	for _, o := range s.st.orders {
		if o.Status != orders.StatusReady || o.CourierID != "" {
			continue
		}
		out = append(out, assign.Candidate{OrderID: o.ID, DeliveryAt: o.DeliveryAt, UpdatedAt: o.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (s *Store) AssignFlorist(ctx context.Context, orderID, floristID string) error {
	return s.assignWorker(ctx, orderID, orders.StatusPaid, func(o *orders.Order) *string { return &o.FloristID }, floristID)
}

func (s *Store) AssignCourier(ctx context.Context, orderID, courierID string) error {
	return s.assignWorker(ctx, orderID, orders.StatusReady, func(o *orders.Order) *string { return &o.CourierID }, courierID)
}

func (s *Store) assignWorker(ctx context.Context, orderID string, want orders.Status, field func(*orders.Order) *string, workerID string) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	o, ok := s.st.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	slot := field(&o)
	if o.Status != want || *slot != "" {
		return assign.ErrAlreadyAssigned
	}
	*slot = workerID
	o.UpdatedAt = time.Now().UTC()
	s.st.orders[orderID] = o
	return nil
}
