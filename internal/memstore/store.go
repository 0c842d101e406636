// Package memstore keeps every repository in process memory for the service
// and handler tests. A transaction holds the write lock for its whole
// duration and restores a snapshot on error.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
)

type state struct {
	components map[string]catalog.Component
	bouquets   map[string]catalog.Bouquet
	batches    map[int64]stock.Batch
	nextBatch  int64
	movements  []stock.Movement
	orders     map[string]orders.Order
	payments   map[string]orders.Payment
	workers    map[string]assign.Worker
}

func (s *state) clone() *state {
	return &state{
		components: maps.Clone(s.components),
		bouquets:   maps.Clone(s.bouquets),
		batches:    maps.Clone(s.batches),
		nextBatch:  s.nextBatch,
		movements:  append([]stock.Movement(nil), s.movements...),
		orders:     maps.Clone(s.orders),
		payments:   maps.Clone(s.payments),
		workers:    maps.Clone(s.workers),
	}
}

type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		components: map[string]catalog.Component{},
		bouquets:   map[string]catalog.Bouquet{},
		batches:    map[int64]stock.Batch{},
		nextBatch:  1,
		orders:     map[string]orders.Order{},
		payments:   map[string]orders.Payment{},
		workers:    map[string]assign.Worker{},
	}}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RLock()
	}
}

func (s *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RUnlock()
	}
}

func (s *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithTx serializes fn against every other store access. Changes made by fn
// are dropped when it returns an error. Nested calls join the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snap
		return err
	}
	return nil
}
