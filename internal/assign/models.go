// Package assign hands paid orders to florists and ready orders to couriers.
// Both jobs run on a timer. Each tick ranks the workers once by load, least
// loaded first and ties by id, then rotates through that ranking over the
// eligible orders without re-ranking.
package assign

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
)

type Worker struct {
	ID     string    `json:"id"`
	Email  string    `json:"email"`
	Role   auth.Role `json:"role"`
	Active bool      `json:"active"`
}

// Candidate is an order waiting for a worker.
type Candidate struct {
	OrderID    string
	DeliveryAt time.Time
	UpdatedAt  time.Time
}

var ErrAlreadyAssigned = errors.New("order already assigned or no longer eligible")

type Repository interface {
	// ActiveWorkers returns active workers of role ordered by id.
	ActiveWorkers(ctx context.Context, role auth.Role) ([]Worker, error)
	// FloristLoads counts paid orders per florist.
	FloristLoads(ctx context.Context) (map[string]int, error)
	// CourierLoads counts ready and delivering orders per courier.
	CourierLoads(ctx context.Context) (map[string]int, error)
	// FloristCandidates are paid orders without a florist whose delivery
	// time falls in [from, to], soonest first.
	FloristCandidates(ctx context.Context, from, to time.Time) ([]Candidate, error)
	// CourierCandidates are ready orders without a courier, longest waiting
	// first.
	CourierCandidates(ctx context.Context) ([]Candidate, error)
	// AssignFlorist and AssignCourier fail with ErrAlreadyAssigned when the
	// order is no longer eligible.
	AssignFlorist(ctx context.Context, orderID, floristID string) error
	AssignCourier(ctx context.Context, orderID, courierID string) error
}

// JobError is a per-order failure inside a run. It is logged and the run
// moves on to the next order.
type JobError struct {
	Job     string
	OrderID string
	Err     error
}

func (e *JobError) Error() string { return e.Job + ": order " + e.OrderID + ": " + e.Err.Error() }

func (e *JobError) Unwrap() error { return e.Err }

// Result summarises one run of a job.
type Result struct {
	Job      string        `json:"job"`
	Assigned []Assignment  `json:"assigned"`
	Failures []*JobError   `json:"-"`
	Skipped  int           `json:"skipped"`
	Took     time.Duration `json:"took"`
}

type Assignment struct {
	OrderID  string `json:"order_id"`
	WorkerID string `json:"worker_id"`
}
