// Package payment simulates a card gateway. Only the outcome matters to the
// order engine: success, or failure with a reason shown to the customer.
package payment

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

type Outcome struct {
	Success bool
	Reason  string
}

type Gateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal) (Outcome, error)
}

var DefaultReasons = []string{
	"insufficient funds",
	"bank gateway error",
	"card blocked",
	"invalid card details",
}

// Simulator succeeds SuccessWeight times out of 100.
type Simulator struct {
	SuccessWeight int
	Reasons       []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulator(successWeight int, seed uint64) *Simulator {
	if successWeight < 0 {
		successWeight = 0
	}
	if successWeight > 100 {
		successWeight = 100
	}
	return &Simulator{
		SuccessWeight: successWeight,
		Reasons:       DefaultReasons,
		rnd:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulator) Charge(ctx context.Context, orderID string, amount decimal.Decimal) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rnd.IntN(100) < s.SuccessWeight {
		return Outcome{Success: true}, nil
	}
	reasons := s.Reasons
	if len(reasons) == 0 {
		reasons = DefaultReasons
	}
	return Outcome{Reason: reasons[s.rnd.IntN(len(reasons))]}, nil
}

// Fixed always returns the same outcome. Useful for tests and demos.
type Fixed Outcome

func (f Fixed) Charge(ctx context.Context, orderID string, amount decimal.Decimal) (Outcome, error) {
	return Outcome(f), nil
}
