package memstore

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
)

var _ stock.Repository = (*Store)(nil)

// LockAvailable relies on the store lock held by the surrounding
// transaction.
func (s *Store) LockAvailable(ctx context.Context, componentID string) ([]stock.Batch, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock batches of %s: no transaction in context", componentID)
	}
	var out []stock.Batch
	for _, b := range s.st.batches {
		if b.ComponentID == componentID && b.Status == stock.StatusAvailable && b.Remaining > 0 {
			out = append(out, b)
		}
	}
	stock.SortFIFO(out)
	return out, nil
}

func (s *Store) UpdateBatch(ctx context.Context, b stock.Batch) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	cur, ok := s.st.batches[b.ID]
	if !ok {
		return fmt.Errorf("%w: batch %d not found", stock.ErrInvalidBatch, b.ID)
	}
	cur.Remaining = b.Remaining
	cur.Status = b.Status
	s.st.batches[b.ID] = cur
	return nil
}

func (s *Store) InsertBatch(ctx context.Context, b *stock.Batch) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	b.ID = s.st.nextBatch
	s.st.nextBatch++
	s.st.batches[b.ID] = *b
	return nil
}

func (s *Store) LogMovements(ctx context.Context, ms []stock.Movement) error {
	s.wlock(ctx)
	defer s.wunlock(ctx)
	s.st.movements = append(s.st.movements, ms...)
	return nil
}

func (s *Store) AvailableTotals(ctx context.Context, componentIDs []string) (map[string]float64, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	want := make(map[string]bool, len(componentIDs))
	for _, id := range componentIDs {
		want[id] = true
	}
	out := map[string]float64{}
	for _, b := range s.st.batches {
		if want[b.ComponentID] && b.Status == stock.StatusAvailable && b.Remaining > 0 {
			out[b.ComponentID] += b.Remaining
		}
	}
	return out, nil
}

func (s *Store) ListBatches(ctx context.Context, componentID string) ([]stock.Batch, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	var out []stock.Batch
	for _, b := range s.st.batches {
		if b.ComponentID == componentID {
			out = append(out, b)
		}
	}
	stock.SortFIFO(out)
	return out, nil
}

// Movements returns the audit trail in insertion order.
func (s *Store) Movements() []stock.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]stock.Movement(nil), s.st.movements...)
}
