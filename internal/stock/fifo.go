package stock

import (
	"fmt"
	"sort"

	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
)

// Policy holds the depletion tolerance. Epsilon applies to continuous kinds
// only: a ribbon or wrapper batch left with Epsilon or less is written off as
// out of stock. This is a business rule about unusable offcuts, not a float
// rounding fix. Flower counts are always compared exactly.
type Policy struct {
	Epsilon float64
}

func DefaultPolicy() Policy { return Policy{Epsilon: 0.001} }

func (p Policy) tolerance(k catalog.Kind) float64 {
	if k.Discrete() {
		return 0
	}
	return p.Epsilon
}

// Covers reports whether available satisfies required for kind k.
func (p Policy) Covers(k catalog.Kind, required, available float64) bool {
	return required-available <= p.tolerance(k)
}

// SortFIFO orders batches oldest delivery first, then by id.
func SortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].DeliveryDate.Equal(batches[j].DeliveryDate) {
			return batches[i].DeliveryDate.Before(batches[j].DeliveryDate)
		}
		return batches[i].ID < batches[j].ID
	})
}

// Total sums the remaining amount of usable batches.
func Total(batches []Batch) float64 {
	var sum float64
	for _, b := range batches {
		if b.Status == StatusAvailable && b.Remaining > 0 {
			sum += b.Remaining
		}
	}
	return sum
}

// Plan walks the batches oldest first and works out what a deduction of
// amount would take from each. It does not touch the input; updated holds
// the new state of every batch that changed. When the usable total falls
// short the plan fails before anything is computed. A length at or below
// the tolerance cannot be cut and is rejected.
func Plan(c catalog.Component, batches []Batch, amount float64, p Policy) (updated []Batch, taken []Consumption, err error) {
	if amount <= 0 {
		return nil, nil, nil
	}
	tol := p.tolerance(c.Kind)
	if amount <= tol {
		return nil, nil, fmt.Errorf("%w: %v %s of %s is below the depletion tolerance",
			catalog.ErrInvalidAmount, amount, c.Kind.Unit(), c.Name)
	}

	usable := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.ComponentID == c.ID && b.Status == StatusAvailable && b.Remaining > 0 {
			usable = append(usable, b)
		}
	}
	SortFIFO(usable)

	available := Total(usable)
	if !p.Covers(c.Kind, amount, available) {
		return nil, nil, &InsufficientStockError{Component: c, Required: amount, Available: available}
	}

	left := amount
	for _, b := range usable {
		if left <= tol {
			break
		}
		take := min(b.Remaining, left)
		before := b.Remaining
		b.Remaining -= take
		left -= take

		var offcut float64
		if b.Remaining <= tol {
			offcut = b.Remaining
			b.Remaining = 0
			b.Status = DepletedStatus(c.Kind)
		}
		updated = append(updated, b)
		taken = append(taken, Consumption{
			BatchID:     b.ID,
			ComponentID: c.ID,
			Taken:       take,
			WrittenOff:  offcut,
			Before:      before,
			After:       b.Remaining,
			Status:      b.Status,
		})
	}
	return updated, taken, nil
}
