package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the batch storage. LockAvailable must lock the returned rows
// until the surrounding transaction ends, so that two deductions of the same
// component never read the same remaining amount.
type Repository interface {
	LockAvailable(ctx context.Context, componentID string) ([]Batch, error)
	UpdateBatch(ctx context.Context, b Batch) error
	InsertBatch(ctx context.Context, b *Batch) error
	LogMovements(ctx context.Context, ms []Movement) error
	AvailableTotals(ctx context.Context, componentIDs []string) (map[string]float64, error)
	ListBatches(ctx context.Context, componentID string) ([]Batch, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Ledger struct {
	Repo   Repository
	Tx     Transactor
	Policy Policy
	Log    *zap.Logger
	Now    func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// Deduct consumes amount of c oldest batch first. It joins the transaction
// in ctx when there is one. Sufficiency is checked against the locked rows
// before any write, so a shortfall leaves every batch untouched.
func (l *Ledger) Deduct(ctx context.Context, ref string, c catalog.Component, amount float64) ([]Consumption, error) {
	var taken []Consumption
	err := l.Tx.WithTx(ctx, func(ctx context.Context) error {
		batches, err := l.Repo.LockAvailable(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("lock batches of %s: %w", c.ID, err)
		}
		updated, consumed, err := Plan(c, batches, amount, l.Policy)
		if err != nil {
			return err
		}
		for _, b := range updated {
			if err := l.Repo.UpdateBatch(ctx, b); err != nil {
				return fmt.Errorf("update batch %d: %w", b.ID, err)
			}
		}
		now := l.now()
		ms := make([]Movement, 0, len(consumed))
		for _, cn := range consumed {
			cut := cn.Before - cn.Taken
			ms = append(ms, Movement{
				ID:              uuid.NewString(),
				BatchID:         cn.BatchID,
				ComponentID:     cn.ComponentID,
				ReferenceID:     ref,
				QuantityChange:  -cn.Taken,
				RemainingBefore: cn.Before,
				RemainingAfter:  cut,
				Reason:          ReasonOrderAssembly,
				CreatedAt:       now,
			})
			if cn.WrittenOff > 0 {
				ms = append(ms, Movement{
					ID:              uuid.NewString(),
					BatchID:         cn.BatchID,
					ComponentID:     cn.ComponentID,
					ReferenceID:     ref,
					QuantityChange:  -cn.WrittenOff,
					RemainingBefore: cut,
					RemainingAfter:  cn.After,
					Reason:          ReasonOffcutWriteOff,
					CreatedAt:       now,
				})
			}
		}
		if err := l.Repo.LogMovements(ctx, ms); err != nil {
			return fmt.Errorf("log movements: %w", err)
		}
		taken = consumed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.Log != nil {
		l.Log.Debug("stock deducted",
			zap.String("component_id", c.ID),
			zap.Float64("amount", amount),
			zap.Int("batches", len(taken)),
			zap.String("reference", ref),
		)
	}
	return taken, nil
}

// Available returns the usable total per component. Missing ids map to 0.
func (l *Ledger) Available(ctx context.Context, componentIDs []string) (map[string]float64, error) {
	totals, err := l.Repo.AvailableTotals(ctx, componentIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range componentIDs {
		if _, ok := totals[id]; !ok {
			totals[id] = 0
		}
	}
	return totals, nil
}

// Intake records a new delivery batch.
func (l *Ledger) Intake(ctx context.Context, c catalog.Component, b Batch) (Batch, error) {
	if b.Remaining <= 0 {
		return Batch{}, fmt.Errorf("%w: remaining must be positive", ErrInvalidBatch)
	}
	if c.Kind.Discrete() && b.Remaining != float64(int64(b.Remaining)) {
		return Batch{}, fmt.Errorf("%w: flower batches hold whole stems", ErrInvalidBatch)
	}
	if !c.Kind.Discrete() {
		b.BatchNumber = ""
	}
	if b.DeliveryDate.IsZero() {
		b.DeliveryDate = l.now()
	}
	b.ComponentID = c.ID
	b.Status = StatusAvailable

	err := l.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := l.Repo.InsertBatch(ctx, &b); err != nil {
			return err
		}
		return l.Repo.LogMovements(ctx, []Movement{{
			ID:              uuid.NewString(),
			BatchID:         b.ID,
			ComponentID:     c.ID,
			QuantityChange:  b.Remaining,
			RemainingBefore: 0,
			RemainingAfter:  b.Remaining,
			Reason:          ReasonIntake,
			CreatedAt:       l.now(),
		}})
	})
	if err != nil {
		return Batch{}, err
	}
	return b, nil
}

func (l *Ledger) Batches(ctx context.Context, componentID string) ([]Batch, error) {
	bs, err := l.Repo.ListBatches(ctx, componentID)
	if err != nil {
		return nil, err
	}
	SortFIFO(bs)
	return bs, nil
}
