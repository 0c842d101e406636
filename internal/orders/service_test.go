package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/cart"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/memstore"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/ariefcatur/go-flowershop-orders/internal/payment"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rose  = catalog.Component{ID: "rose", Kind: catalog.KindFlower, Name: "Rose"}
	tulip = catalog.Component{ID: "tulip", Kind: catalog.KindFlower, Name: "Tulip"}
	satin = catalog.Component{ID: "satin", Kind: catalog.KindRibbon, Name: "Satin ribbon"}
	kraft = catalog.Component{ID: "kraft", Kind: catalog.KindWrapper, Name: "Kraft paper"}

	client  = auth.Actor{ID: "c1", Role: auth.RoleClient}
	florist = auth.Actor{ID: "f1", Role: auth.RoleFlorist}
	courier = auth.Actor{ID: "k1", Role: auth.RoleCourier}
	staff   = auth.Actor{ID: "s1", Role: auth.RoleStaff}

	now = time.Date(2026, time.February, 14, 9, 0, 0, 0, time.UTC)
)

type published struct {
	topic   string
	key     string
	headers []kafkago.Header
}

type recorder struct {
	mu   sync.Mutex
	msgs []published
}

func (r *recorder) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{topic: topic, key: string(key), headers: headers})
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.topic
	}
	return out
}

type fixture struct {
	store *memstore.Store
	svc   *orders.Service
	pub   *recorder
}

func newFixture(t *testing.T, pay payment.Gateway) *fixture {
	t.Helper()
	s := memstore.New()
	s.AddComponent(rose)
	s.AddComponent(tulip)
	s.AddComponent(satin)
	s.AddComponent(kraft)
	s.AddBouquet(catalog.Bouquet{ID: "classic", Name: "Classic", Price: decimal.NewFromInt(40), IsActive: true, Links: []catalog.Link{
		{Component: rose, Amount: 7},
		{Component: satin, Amount: 0.5},
		{Component: kraft, Amount: 0.75},
	}})
	s.AddBouquet(catalog.Bouquet{ID: "spring", Name: "Spring", Price: decimal.NewFromInt(25), IsActive: true, Links: []catalog.Link{
		{Component: rose, Amount: 3},
		{Component: tulip, Amount: 5},
		{Component: satin, Amount: 0.25},
	}})
	s.AddBouquet(catalog.Bouquet{ID: "retired", Name: "Retired", Price: decimal.NewFromInt(10), Links: []catalog.Link{
		{Component: rose, Amount: 1},
	}})

	pub := &recorder{}
	ledger := &stock.Ledger{Repo: s, Tx: s, Policy: stock.DefaultPolicy(), Now: func() time.Time { return now }}
	svc := &orders.Service{
		Orders:                s,
		Catalog:               s,
		Ledger:                ledger,
		Tx:                    s,
		Payments:              pay,
		Publisher:             pub,
		DeliveryPricePerMeter: decimal.RequireFromString("0.05"),
		Name:                  "orders-test",
		Now:                   func() time.Time { return now },
	}
	return &fixture{store: s, svc: svc, pub: pub}
}

func (f *fixture) intake(t *testing.T, c catalog.Component, day int, amount float64) {
	t.Helper()
	_, err := f.svc.Ledger.Intake(context.Background(), c, stock.Batch{
		DeliveryDate: time.Date(2026, time.February, day, 0, 0, 0, 0, time.UTC),
		Remaining:    amount,
	})
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, id string) float64 {
	t.Helper()
	m, err := f.svc.Ledger.Available(context.Background(), []string{id})
	require.NoError(t, err)
	return m[id]
}

func checkout() orders.Checkout {
	return orders.Checkout{
		DeliveryAt:       now.Add(3 * time.Hour),
		DeliveryDistance: 1200,
		Address:          orders.Address{Name: "Main st 1", Lat: 55.75, Lon: 37.61},
		Recipient:        orders.Recipient{Name: "Anna", Phone: "+100000"},
	}
}

// putOrder stores an order in status st with florist and courier assigned.
func (f *fixture) putOrder(st orders.Status, items ...orders.OrderItem) string {
	id := "order-" + string(st)
	f.store.PutOrder(orders.Order{
		ID:         id,
		CustomerID: client.ID,
		Status:     st,
		FloristID:  florist.ID,
		CourierID:  courier.ID,
		DeliveryAt: now.Add(2 * time.Hour),
		Items:      items,
	}, orders.Payment{Status: orders.PaymentSuccess, Amount: decimal.NewFromInt(100)})
	return id
}

func item(bouquet string, qty int) orders.OrderItem {
	return orders.OrderItem{BouquetID: bouquet, Quantity: qty, UnitPrice: decimal.NewFromInt(10)}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, payment.Fixed{Success: true})
	c := cart.NewMemory(
		cart.Line{BouquetID: "classic", Quantity: 2, UnitPrice: decimal.NewFromInt(40)},
		cart.Line{BouquetID: "spring", Quantity: 1, UnitPrice: decimal.NewFromInt(25)},
	)

	o, replay, err := f.svc.CreateOrder(context.Background(), client, c, checkout())
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, orders.StatusNew, o.Status)
	assert.True(t, decimal.NewFromInt(60).Equal(o.DeliveryCost), o.DeliveryCost.String())
	assert.True(t, decimal.NewFromInt(165).Equal(o.TotalCost), o.TotalCost.String())
	assert.True(t, decimal.NewFromInt(105).Equal(o.BouquetCost()))
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 0, c.Len())

	p, err := f.store.GetPayment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentNew, p.Status)
	assert.True(t, o.TotalCost.Equal(p.Amount))

	assert.Equal(t, []string{orders.TopicOrderCreated}, f.pub.topics())
	assert.Equal(t, o.ID, f.pub.msgs[0].key)
}

func TestCreateOrder_Idempotent(t *testing.T) {
	f := newFixture(t, payment.Fixed{Success: true})
	in := checkout()
	in.ExternalID = "ext-1"

	first, _, err := f.svc.CreateOrder(context.Background(), client,
		cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), in)
	require.NoError(t, err)

	again, replay, err := f.svc.CreateOrder(context.Background(), client,
		cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), in)
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = f.svc.CreateOrder(context.Background(), auth.Actor{ID: "c2", Role: auth.RoleClient},
		cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), in)
	assert.ErrorIs(t, err, orders.ErrConflict)
}

func TestCreateOrder_Rejects(t *testing.T) {
	f := newFixture(t, payment.Fixed{Success: true})
	ctx := context.Background()
	line := cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}

	_, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(), checkout())
	assert.ErrorIs(t, err, orders.ErrEmptyCart)

	_, _, err = f.svc.CreateOrder(ctx, florist, cart.NewMemory(line), checkout())
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)

	bad := checkout()
	bad.DeliveryAt = now.Add(-time.Hour)
	bad.Recipient.Phone = ""
	_, _, err = f.svc.CreateOrder(ctx, client, cart.NewMemory(line), bad)
	require.ErrorIs(t, err, orders.ErrInvalidInput)
	assert.Contains(t, err.Error(), "recipient phone")
	assert.Contains(t, err.Error(), "delivery time")

	_, _, err = f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "retired", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}), checkout())
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	assert.Empty(t, f.pub.topics())
}

func TestPay(t *testing.T) {
	f := newFixture(t, payment.Fixed{Success: true})
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	_, _, err = f.svc.Pay(ctx, auth.Actor{ID: "c2", Role: auth.RoleClient}, o.ID, orders.MethodCard)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)

	paid, p, err := f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, paid.Status)
	assert.Equal(t, orders.PaymentSuccess, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, now, *p.PaidAt)

	_, _, err = f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	assert.Equal(t, []string{orders.TopicOrderCreated, orders.TopicOrderPaid}, f.pub.topics())
}

func TestPay_DeclinedCanRetry(t *testing.T) {
	f := newFixture(t, payment.Fixed{Reason: "card blocked"})
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	got, p, err := f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusNew, got.Status)
	assert.Equal(t, orders.PaymentFailed, p.Status)
	assert.Equal(t, "card blocked", p.ErrorMessage)

	f.svc.Payments = payment.Fixed{Success: true}
	got, p, err = f.svc.Pay(ctx, client, o.ID, orders.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.Equal(t, orders.PaymentSuccess, p.Status)
	assert.Empty(t, p.ErrorMessage)
	assert.Equal(t, orders.MethodCash, p.Method)

	assert.Equal(t, []string{orders.TopicOrderCreated, orders.TopicPaymentFailed, orders.TopicOrderPaid}, f.pub.topics())
}

type brokenGateway struct{}

func (brokenGateway) Charge(context.Context, string, decimal.Decimal) (payment.Outcome, error) {
	return payment.Outcome{}, errors.New("connection reset")
}

func TestPay_GatewayError(t *testing.T) {
	f := newFixture(t, brokenGateway{})
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	_, _, err = f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
	require.Error(t, err)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, p.Status)
	cur, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusNew, cur.Status)
}

// gatedGateway holds every charge until release is closed and answers from
// outcomes in call order.
type gatedGateway struct {
	entered  chan struct{}
	release  chan struct{}
	outcomes []payment.Outcome

	mu    sync.Mutex
	calls int
}

func newGatedGateway(outcomes ...payment.Outcome) *gatedGateway {
	return &gatedGateway{entered: make(chan struct{}, 8), release: make(chan struct{}), outcomes: outcomes}
}

func (g *gatedGateway) Charge(ctx context.Context, orderID string, amount decimal.Decimal) (payment.Outcome, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	return g.outcomes[min(i, len(g.outcomes)-1)], nil
}

func (g *gatedGateway) charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type payResult struct {
	order *orders.Order
	pay   *orders.Payment
	err   error
}

func TestPay_SecondCallWhileChargingIsRejected(t *testing.T) {
	gw := newGatedGateway(payment.Outcome{Success: true}, payment.Outcome{Reason: "card blocked"})
	f := newFixture(t, gw)
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	first := make(chan payResult, 1)
	go func() {
		o, p, err := f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
		first <- payResult{o, p, err}
	}()
	<-gw.entered

	_, _, err = f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
	assert.ErrorIs(t, err, orders.ErrPaymentClosed)

	close(gw.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, orders.StatusPaid, res.order.Status)
	assert.Equal(t, orders.PaymentSuccess, res.pay.Status)
	assert.Equal(t, 1, gw.charges())

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentSuccess, p.Status)
	assert.Empty(t, p.ErrorMessage)
	cur, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, cur.Status)

	assert.Equal(t, []string{orders.TopicOrderCreated, orders.TopicOrderPaid}, f.pub.topics())
}

type countingGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGateway) Charge(ctx context.Context, orderID string, amount decimal.Decimal) (payment.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return payment.Outcome{Success: true}, nil
}

func TestPay_ConcurrentCallsChargeOnce(t *testing.T) {
	gw := &countingGateway{}
	f := newFixture(t, gw)
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, orders.ErrPaymentClosed) || errors.Is(err, orders.ErrInvalidTransition), err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, gw.calls)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentSuccess, p.Status)
}

func TestPay_CancelWhileChargingRefunds(t *testing.T) {
	gw := newGatedGateway(payment.Outcome{Success: true})
	f := newFixture(t, gw)
	ctx := context.Background()
	o, _, err := f.svc.CreateOrder(ctx, client, cart.NewMemory(cart.Line{BouquetID: "classic", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}), checkout())
	require.NoError(t, err)

	first := make(chan payResult, 1)
	go func() {
		o, p, err := f.svc.Pay(ctx, client, o.ID, orders.MethodCard)
		first <- payResult{o, p, err}
	}()
	<-gw.entered

	tr, err := f.svc.Cancel(ctx, client, o.ID)
	require.NoError(t, err)
	assert.True(t, tr.Changed)

	close(gw.release)
	res := <-first
	assert.ErrorIs(t, res.err, orders.ErrInvalidTransition)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentRefunded, p.Status)
	cur, err := f.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCanceled, cur.Status)
}

func TestCompleteAssembly_DeductsAggregatedStock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.intake(t, rose, 1, 5)
	f.intake(t, rose, 5, 20)
	f.intake(t, tulip, 1, 5)
	f.intake(t, satin, 1, 2)
	f.intake(t, kraft, 1, 1)
	id := f.putOrder(orders.StatusPaid, item("classic", 1), item("spring", 1))

	shortfalls, err := f.svc.CheckStock(ctx, florist, id)
	require.NoError(t, err)
	assert.Empty(t, shortfalls)

	tr, err := f.svc.CompleteAssembly(ctx, florist, id)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Equal(t, orders.StatusPaid, tr.From)
	assert.Equal(t, orders.StatusReady, tr.Order.Status)

	assert.Equal(t, 15.0, f.available(t, "rose"))
	assert.Equal(t, 0.0, f.available(t, "tulip"))
	assert.InDelta(t, 1.25, f.available(t, "satin"), 1e-9)
	assert.InDelta(t, 0.25, f.available(t, "kraft"), 1e-9)

	assert.Equal(t, []string{orders.TopicOrderReady}, f.pub.topics())
}

func TestCompleteAssembly_AllOrNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.intake(t, rose, 1, 50)
	f.intake(t, satin, 1, 5)
	f.intake(t, kraft, 1, 5)
	f.intake(t, tulip, 1, 4)
	id := f.putOrder(orders.StatusPaid, item("classic", 1), item("spring", 1))

	shortfalls, err := f.svc.CheckStock(ctx, staff, id)
	require.NoError(t, err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "tulip", shortfalls[0].ComponentID)
	assert.Equal(t, 5.0, shortfalls[0].Required)
	assert.Equal(t, 4.0, shortfalls[0].Available)

	_, err = f.svc.CompleteAssembly(ctx, florist, id)
	var short *stock.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, "tulip", short.Component.ID)

	// roses come before tulips in deduction order and must be restored
	assert.Equal(t, 50.0, f.available(t, "rose"))
	assert.Equal(t, 5.0, f.available(t, "satin"))
	assert.Equal(t, 4.0, f.available(t, "tulip"))

	o, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Empty(t, f.pub.topics())

	f.intake(t, tulip, 2, 1)
	tr, err := f.svc.CompleteAssembly(ctx, florist, id)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
}

func TestCompleteAssembly_Guards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.intake(t, rose, 1, 50)
	f.intake(t, satin, 1, 5)
	f.intake(t, kraft, 1, 5)

	newID := f.putOrder(orders.StatusNew, item("classic", 1))
	_, err := f.svc.CompleteAssembly(ctx, florist, newID)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	paidID := f.putOrder(orders.StatusPaid, item("classic", 1))
	_, err = f.svc.CompleteAssembly(ctx, auth.Actor{ID: "f2", Role: auth.RoleFlorist}, paidID)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)
	assert.Equal(t, 50.0, f.available(t, "rose"))

	_, err = f.svc.CompleteAssembly(ctx, florist, paidID)
	require.NoError(t, err)
	tr, err := f.svc.CompleteAssembly(ctx, florist, paidID)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	assert.Equal(t, 43.0, f.available(t, "rose"))
}

func TestDeliveryFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.putOrder(orders.StatusReady, item("classic", 1))

	_, err := f.svc.CompleteDelivery(ctx, courier, id)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = f.svc.UpdateCourierLocation(ctx, courier, id, 55.7, 37.6)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	tr, err := f.svc.StartDelivery(ctx, courier, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivering, tr.Order.Status)

	loc, err := f.svc.UpdateCourierLocation(ctx, courier, id, 55.123456789, 37.987654321)
	require.NoError(t, err)
	assert.Equal(t, 55.123457, loc.Lat)
	assert.Equal(t, 37.987654, loc.Lon)

	_, err = f.svc.UpdateCourierLocation(ctx, courier, id, 91, 0)
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	o, err := f.svc.Get(ctx, client, id)
	require.NoError(t, err)
	require.NotNil(t, o.CourierLocation)
	assert.Equal(t, 55.123457, o.CourierLocation.Lat)

	tr, err = f.svc.CompleteDelivery(ctx, courier, id)
	require.NoError(t, err)
	assert.True(t, tr.Changed)

	tr, err = f.svc.CompleteDelivery(ctx, courier, id)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	assert.Equal(t, orders.StatusDelivered, tr.Order.Status)

	_, err = f.svc.ConfirmCompletion(ctx, courier, id)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)
	tr, err = f.svc.ConfirmCompletion(ctx, client, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, tr.Order.Status)

	_, err = f.svc.CompleteDelivery(ctx, courier, id)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	assert.Equal(t, []string{
		orders.TopicDeliveryProgress,
		orders.TopicDeliveryProgress,
		orders.TopicOrderCompleted,
	}, f.pub.topics())
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	paidID := f.putOrder(orders.StatusPaid, item("classic", 1))
	tr, err := f.svc.Cancel(ctx, client, paidID)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	p, err := f.store.GetPayment(ctx, paidID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentRefunded, p.Status)

	tr, err = f.svc.Cancel(ctx, client, paidID)
	require.NoError(t, err)
	assert.False(t, tr.Changed)

	readyID := f.putOrder(orders.StatusReady, item("classic", 1))
	_, err = f.svc.Cancel(ctx, staff, readyID)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	newID := f.putOrder(orders.StatusNew, item("classic", 1))
	_, err = f.svc.Cancel(ctx, courier, newID)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)

	assert.Equal(t, []string{orders.TopicOrderCanceled}, f.pub.topics())
}

func TestRequiredComponents(t *testing.T) {
	f := newFixture(t, nil)
	reqs, err := f.svc.RequiredComponents(context.Background(), "classic", 3)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, "rose", reqs[0].Component.ID)
	assert.Equal(t, 21.0, reqs[0].Amount)
	assert.Equal(t, "satin", reqs[1].Component.ID)
	assert.InDelta(t, 2.25, reqs[2].Amount, 1e-9)

	_, err = f.svc.RequiredComponents(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestList_ScopedByRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.putOrder(orders.StatusPaid, item("classic", 1))
	f.putOrder(orders.StatusDelivering, item("classic", 1))
	f.store.PutOrder(orders.Order{ID: "other", CustomerID: "c2", Status: orders.StatusPaid}, orders.Payment{})

	mine, err := f.svc.List(ctx, client, orders.Filter{CustomerID: "c2"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	work, err := f.svc.List(ctx, florist, orders.Filter{})
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, orders.StatusPaid, work[0].Status)

	all, err := f.svc.List(ctx, staff, orders.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.List(ctx, auth.Actor{}, orders.Filter{})
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)
}
