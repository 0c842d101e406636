package assign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"go.uber.org/zap"
)

const (
	JobFlorists = "assign_florists"
	JobCouriers = "assign_couriers"
)

// Scheduler holds the two assignment jobs. Worker ranking is computed once
// per run: an order assigned early in a run does not change the rank used
// for later orders of the same run.
type Scheduler struct {
	Repo      Repository
	Publisher orders.Publisher
	Log       *zap.Logger
	Name      string

	// Florists get orders whose delivery falls in [now+FloristFrom, now+FloristTo].
	FloristFrom time.Duration
	FloristTo   time.Duration

	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Scheduler) AssignFlorists(ctx context.Context) (Result, error) {
	now := s.now()
	from, to := now.Add(s.FloristFrom), now.Add(s.FloristTo)
	cands, err := s.Repo.FloristCandidates(ctx, from, to)
	if err != nil {
		return Result{Job: JobFlorists}, fmt.Errorf("%s: candidates: %w", JobFlorists, err)
	}
	s.log().Debug("florist window",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("orders", len(cands)),
	)
	return s.run(ctx, JobFlorists, auth.RoleFlorist, cands, s.Repo.FloristLoads, s.Repo.AssignFlorist, orders.EventFloristAssigned)
}

func (s *Scheduler) AssignCouriers(ctx context.Context) (Result, error) {
	cands, err := s.Repo.CourierCandidates(ctx)
	if err != nil {
		return Result{Job: JobCouriers}, fmt.Errorf("%s: candidates: %w", JobCouriers, err)
	}
	return s.run(ctx, JobCouriers, auth.RoleCourier, cands, s.Repo.CourierLoads, s.Repo.AssignCourier, orders.EventCourierAssigned)
}

// RunTick runs both jobs once. A failing job does not stop the other.
func (s *Scheduler) RunTick(ctx context.Context) ([]Result, error) {
	fr, ferr := s.AssignFlorists(ctx)
	cr, cerr := s.AssignCouriers(ctx)
	return []Result{fr, cr}, errors.Join(ferr, cerr)
}

func (s *Scheduler) run(
	ctx context.Context,
	job string,
	role auth.Role,
	cands []Candidate,
	loads func(context.Context) (map[string]int, error),
	bind func(ctx context.Context, orderID, workerID string) error,
	eventType string,
) (Result, error) {
	start := time.Now()
	res := Result{Job: job}
	log := s.log().With(zap.String("job", job))

	if len(cands) == 0 {
		log.Debug("nothing to assign")
		return res, nil
	}
	workers, err := s.Repo.ActiveWorkers(ctx, role)
	if err != nil {
		return res, fmt.Errorf("%s: workers: %w", job, err)
	}
	if len(workers) == 0 {
		log.Warn("no active workers, skipping run", zap.String("role", string(role)), zap.Int("waiting", len(cands)))
		res.Skipped = len(cands)
		return res, nil
	}
	load, err := loads(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: loads: %w", job, err)
	}
	ranked := Rank(workers, load)

	for i, c := range cands {
		w := ranked[i%len(ranked)]
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := bind(ctx, c.OrderID, w.ID); err != nil {
			jerr := &JobError{Job: job, OrderID: c.OrderID, Err: err}
			log.Error("assignment failed", zap.String("order_id", c.OrderID), zap.String("worker_id", w.ID), zap.Error(err))
			res.Failures = append(res.Failures, jerr)
			res.Skipped++
			continue
		}
		res.Assigned = append(res.Assigned, Assignment{OrderID: c.OrderID, WorkerID: w.ID})
		log.Info("order assigned", zap.String("order_id", c.OrderID), zap.String("worker_id", w.ID))
		if err := orders.Emit(ctx, s.Publisher, s.Name, orders.TopicOrderAssigned, eventType, c.OrderID, orders.AssignedPayload{
			OrderID:  c.OrderID,
			WorkerID: w.ID,
			Role:     string(role),
		}); err != nil {
			log.Error("emit event", zap.String("order_id", c.OrderID), zap.Error(err))
		}
	}
	res.Took = time.Since(start)
	log.Info("run finished",
		zap.Int("assigned", len(res.Assigned)),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", res.Took),
	)
	return res, nil
}

// Rank orders workers by load ascending, then by id.
func Rank(workers []Worker, load map[string]int) []Worker {
	out := make([]Worker, len(workers))
	copy(out, workers)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := load[out[i].ID], load[out[j].ID]
		if li != lj {
			return li < lj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
