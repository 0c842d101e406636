package catalog

import (
	"fmt"
	"math"
	"sort"
)

// Requirement is the total amount of one component needed.
type Requirement struct {
	Component Component `json:"component"`
	Amount    float64   `json:"amount"`
}

// RequiredComponents returns, per component id, amount-per-bouquet times
// qty. It has no side effects and backs both the check and deduct flows.
func RequiredComponents(b Bouquet, qty int) (map[string]Requirement, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity %d for bouquet %s", ErrInvalidAmount, qty, b.ID)
	}
	out := make(map[string]Requirement, len(b.Links))
	for _, l := range b.Links {
		if err := validateLink(l); err != nil {
			return nil, fmt.Errorf("bouquet %s: %w", b.ID, err)
		}
		r := out[l.Component.ID]
		r.Component = l.Component
		r.Amount += l.Amount * float64(qty)
		out[l.Component.ID] = r
	}
	return out, nil
}

func validateLink(l Link) error {
	if l.Amount <= 0 || math.IsNaN(l.Amount) || math.IsInf(l.Amount, 0) {
		return fmt.Errorf("%w: %v of %s", ErrInvalidAmount, l.Amount, l.Component.Name)
	}
	if l.Component.Kind.Discrete() && l.Amount != math.Trunc(l.Amount) {
		return fmt.Errorf("%w: fractional flower count %v of %s", ErrInvalidAmount, l.Amount, l.Component.Name)
	}
	return nil
}

// Merge adds the requirements of src into dst.
func Merge(dst, src map[string]Requirement) {
	for id, r := range src {
		cur := dst[id]
		cur.Component = r.Component
		cur.Amount += r.Amount
		dst[id] = cur
	}
}

// Ordered returns requirements sorted by kind rank, then component id. All
// multi-component deductions walk components in this order.
func Ordered(reqs map[string]Requirement) []Requirement {
	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Component.Kind.Rank(), out[j].Component.Kind.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Component.ID < out[j].Component.ID
	})
	return out
}
