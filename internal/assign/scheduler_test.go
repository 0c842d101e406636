package assign_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/memstore"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 8, 8, 0, 0, 0, time.UTC)

func newScheduler(repo assign.Repository) *assign.Scheduler {
	return &assign.Scheduler{
		Repo:        repo,
		FloristFrom: 30 * time.Minute,
		FloristTo:   210 * time.Minute,
		Now:         func() time.Time { return now },
	}
}

func florist(id string) assign.Worker {
	return assign.Worker{ID: id, Email: id + "@shop.test", Role: auth.RoleFlorist, Active: true}
}

func courier(id string) assign.Worker {
	return assign.Worker{ID: id, Email: id + "@shop.test", Role: auth.RoleCourier, Active: true}
}

func paidOrder(s *memstore.Store, id string, deliverIn time.Duration, floristID string) {
	s.PutOrder(orders.Order{
		ID:         id,
		CustomerID: "c1",
		Status:     orders.StatusPaid,
		FloristID:  floristID,
		DeliveryAt: now.Add(deliverIn),
	}, orders.Payment{Status: orders.PaymentSuccess})
}

func floristOf(t *testing.T, s *memstore.Store, id string) string {
	t.Helper()
	o, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return o.FloristID
}

func TestAssignFlorists_RankedOncePerRun(t *testing.T) {
	s := memstore.New()
	s.AddWorker(florist("F1"))
	s.AddWorker(florist("F2"))
	for i := 0; i < 3; i++ {
		paidOrder(s, fmt.Sprintf("busy-%d", i), 10*time.Hour, "F2")
	}
	paidOrder(s, "O2", 90*time.Minute, "")
	paidOrder(s, "O1", 60*time.Minute, "")

	res, err := newScheduler(s).AssignFlorists(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Assigned, 2)

	assert.Equal(t, "F1", floristOf(t, s, "O1"))
	assert.Equal(t, "F2", floristOf(t, s, "O2"))
	assert.Equal(t, assign.Assignment{OrderID: "O1", WorkerID: "F1"}, res.Assigned[0])
}

func TestAssignFlorists_Window(t *testing.T) {
	s := memstore.New()
	s.AddWorker(florist("F1"))
	paidOrder(s, "too-soon", 10*time.Minute, "")
	paidOrder(s, "edge-from", 30*time.Minute, "")
	paidOrder(s, "edge-to", 210*time.Minute, "")
	paidOrder(s, "too-late", 5*time.Hour, "")

	res, err := newScheduler(s).AssignFlorists(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Assigned, 2)
	assert.Empty(t, floristOf(t, s, "too-soon"))
	assert.Empty(t, floristOf(t, s, "too-late"))
	assert.Equal(t, "F1", floristOf(t, s, "edge-from"))
	assert.Equal(t, "F1", floristOf(t, s, "edge-to"))
}

func TestAssignFlorists_NoWorkers(t *testing.T) {
	s := memstore.New()
	s.AddWorker(assign.Worker{ID: "F9", Role: auth.RoleFlorist, Active: false})
	paidOrder(s, "O1", time.Hour, "")

	res, err := newScheduler(s).AssignFlorists(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Assigned)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, floristOf(t, s, "O1"))
}

type flakyRepo struct {
	*memstore.Store
	failOn string
}

func (f flakyRepo) AssignFlorist(ctx context.Context, orderID, floristID string) error {
	if orderID == f.failOn {
		return errors.New("write conflict")
	}
	return f.Store.AssignFlorist(ctx, orderID, floristID)
}

func TestAssignFlorists_FailureSkipsOrder(t *testing.T) {
	s := memstore.New()
	s.AddWorker(florist("F1"))
	s.AddWorker(florist("F2"))
	paidOrder(s, "O1", 60*time.Minute, "")
	paidOrder(s, "O2", 70*time.Minute, "")
	paidOrder(s, "O3", 80*time.Minute, "")

	res, err := newScheduler(flakyRepo{Store: s, failOn: "O1"}).AssignFlorists(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Assigned, 2)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "O1", res.Failures[0].OrderID)

	assert.Empty(t, floristOf(t, s, "O1"))
	assert.Equal(t, "F2", floristOf(t, s, "O2"))
	assert.Equal(t, "F1", floristOf(t, s, "O3"))
}

func TestAssignCouriers(t *testing.T) {
	s := memstore.New()
	s.AddWorker(courier("K1"))
	s.AddWorker(courier("K2"))
	s.AddWorker(florist("F1"))
	s.PutOrder(orders.Order{ID: "busy", Status: orders.StatusDelivering, CourierID: "K1"}, orders.Payment{})
	s.PutOrder(orders.Order{ID: "late", Status: orders.StatusReady, UpdatedAt: now.Add(-10 * time.Minute)}, orders.Payment{})
	s.PutOrder(orders.Order{ID: "early", Status: orders.StatusReady, UpdatedAt: now.Add(-40 * time.Minute)}, orders.Payment{})
	s.PutOrder(orders.Order{ID: "paid", Status: orders.StatusPaid}, orders.Payment{})

	res, err := newScheduler(s).AssignCouriers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []assign.Assignment{
		{OrderID: "early", WorkerID: "K2"},
		{OrderID: "late", WorkerID: "K1"},
	}, res.Assigned)

	o, err := s.Get(context.Background(), "paid")
	require.NoError(t, err)
	assert.Empty(t, o.CourierID)
}

func TestRunTick(t *testing.T) {
	s := memstore.New()
	s.AddWorker(florist("F1"))
	s.AddWorker(courier("K1"))
	paidOrder(s, "O1", time.Hour, "")
	s.PutOrder(orders.Order{ID: "O2", Status: orders.StatusReady}, orders.Payment{})

	results, err := newScheduler(s).RunTick(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, assign.JobFlorists, results[0].Job)
	assert.Len(t, results[0].Assigned, 1)
	assert.Equal(t, assign.JobCouriers, results[1].Job)
	assert.Len(t, results[1].Assigned, 1)
}

func TestRank(t *testing.T) {
	ranked := assign.Rank(
		[]assign.Worker{florist("c"), florist("a"), florist("b")},
		map[string]int{"a": 2, "b": 0, "c": 0},
	)
	ids := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}
