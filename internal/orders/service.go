package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/cart"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/payment"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service drives an order through its lifecycle. Every state change runs in
// one transaction with the order row locked; events go out after commit.
type Service struct {
	Orders    Repository
	Catalog   catalog.Reader
	Ledger    *stock.Ledger
	Tx        Transactor
	Payments  payment.Gateway
	Publisher Publisher
	Log       *zap.Logger

	DeliveryPricePerMeter decimal.Decimal
	Name                  string
	Now                   func() time.Time
}

// Checkout is what the customer fills in besides the cart.
type Checkout struct {
	ExternalID       string    `json:"external_id,omitempty"`
	DeliveryAt       time.Time `json:"delivery_at"`
	DeliveryDistance float64   `json:"delivery_distance"`
	Address          Address   `json:"address"`
	Recipient        Recipient `json:"recipient"`
}

// Transition is the result of a status-changing call. Changed is false when
// the order was already in the target state and nothing happened.
type Transition struct {
	Order   *Order `json:"order"`
	From    Status `json:"from"`
	Changed bool   `json:"changed"`
}

// Shortfall is one component the stock cannot cover.
type Shortfall struct {
	ComponentID string       `json:"component_id"`
	Name        string       `json:"name"`
	Kind        catalog.Kind `json:"kind"`
	Required    float64      `json:"required"`
	Available   float64      `json:"available"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Service) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if err := Emit(ctx, s.Publisher, s.Name, topic, eventType, orderID, payload); err != nil {
		s.log().Error("emit event", zap.String("event_type", eventType), zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) CreateOrder(ctx context.Context, actor auth.Actor, c cart.Cart, in Checkout) (*Order, bool, error) {
	if err := auth.Authorize(actor, auth.ActionCreateOrder, auth.Ownership{}).Err(); err != nil {
		return nil, false, err
	}
	if c == nil || c.Len() == 0 {
		return nil, false, ErrEmptyCart
	}
	if err := s.validateCheckout(in); err != nil {
		return nil, false, err
	}

	if in.ExternalID != "" {
		existing, err := s.Orders.FindByExternalID(ctx, in.ExternalID)
		switch {
		case err == nil:
			if existing.CustomerID != actor.ID {
				return nil, false, fmt.Errorf("%w: external_id already used", ErrConflict)
			}
			return existing, true, nil
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	}

	lines := c.Lines()
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, false, fmt.Errorf("%w: quantity of %s must be positive", ErrInvalidInput, l.BouquetID)
		}
		ids = append(ids, l.BouquetID)
	}
	bouquets, err := s.Catalog.GetBouquets(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		b, ok := bouquets[l.BouquetID]
		if !ok || !b.IsActive {
			return nil, false, fmt.Errorf("%w: bouquet %s is not available", ErrInvalidInput, l.BouquetID)
		}
		items = append(items, OrderItem{BouquetID: l.BouquetID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}

	now := s.now()
	deliveryCost := s.DeliveryPricePerMeter.Mul(decimal.NewFromFloat(in.DeliveryDistance)).Round(2)
	o := &Order{
		ID:               uuid.NewString(),
		ExternalID:       in.ExternalID,
		CustomerID:       actor.ID,
		Status:           StatusNew,
		DeliveryAt:       in.DeliveryAt.UTC(),
		TotalCost:        c.TotalPrice().Add(deliveryCost),
		DeliveryCost:     deliveryCost,
		DeliveryDistance: in.DeliveryDistance,
		Address:          in.Address,
		Recipient:        in.Recipient,
		Items:            items,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	p := &Payment{OrderID: o.ID, Amount: o.TotalCost, Status: PaymentNew, Method: MethodCard}

	if err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		return s.Orders.Create(ctx, o, p)
	}); err != nil {
		return nil, false, fmt.Errorf("create order: %w", err)
	}
	if err := c.Clear(ctx); err != nil {
		s.log().Warn("clear cart", zap.String("order_id", o.ID), zap.Error(err))
	}

	s.log().Info("order created",
		zap.String("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.String("total_cost", o.TotalCost.StringFixed(2)),
	)
	s.emit(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      o.Items,
		TotalCost:  o.TotalCost,
		DeliveryAt: o.DeliveryAt,
	})
	return o, false, nil
}

func (s *Service) validateCheckout(in Checkout) error {
	var problems []string
	if strings.TrimSpace(in.Recipient.Name) == "" {
		problems = append(problems, "recipient name is required")
	}
	if strings.TrimSpace(in.Recipient.Phone) == "" {
		problems = append(problems, "recipient phone is required")
	}
	if strings.TrimSpace(in.Address.Name) == "" {
		problems = append(problems, "address is required")
	}
	if !validCoords(in.Address.Lat, in.Address.Lon) {
		problems = append(problems, "address coordinates out of range")
	}
	if in.DeliveryDistance < 0 || math.IsNaN(in.DeliveryDistance) {
		problems = append(problems, "delivery distance must not be negative")
	}
	if in.DeliveryAt.IsZero() || !in.DeliveryAt.After(s.now()) {
		problems = append(problems, "delivery time must be in the future")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func validCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Pay charges the order. The payment is claimed (new or failed to pending)
// under the order row lock before the gateway is called, so concurrent calls
// charge at most once. A declined charge is not an error: the payment is
// returned with status failed and the order stays new so the customer can
// retry. A charge that succeeds after the order was canceled is refunded.
func (s *Service) Pay(ctx context.Context, actor auth.Actor, orderID string, method PaymentMethod) (*Order, *Payment, error) {
	if method != MethodCard && method != MethodCash {
		return nil, nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}
	var p *Payment
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := auth.Authorize(actor, auth.ActionPay, o.Ownership()).Err(); err != nil {
			return err
		}
		if o.Status != StatusNew {
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
		}
		p, err = s.Orders.ClaimPayment(ctx, orderID, method)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	outcome, err := s.Payments.Charge(ctx, orderID, p.Amount)
	if err != nil {
		p.Status = PaymentFailed
		p.ErrorMessage = "payment gateway unavailable"
		if serr := s.Orders.SettlePayment(context.WithoutCancel(ctx), p); serr != nil {
			s.log().Error("save failed payment", zap.String("order_id", orderID), zap.Error(serr))
		}
		return nil, nil, fmt.Errorf("charge order %s: %w", orderID, err)
	}

	var (
		o        *Order
		refunded bool
	)
	err = s.Tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch {
		case !outcome.Success:
			p.Status = PaymentFailed
			p.ErrorMessage = outcome.Reason
		case cur.Status != StatusNew:
			p.Status = PaymentRefunded
			refunded = true
		default:
			paidAt := s.now()
			p.Status = PaymentSuccess
			p.PaidAt = &paidAt
			if err := s.Orders.UpdateStatus(ctx, orderID, StatusNew, StatusPaid); err != nil {
				return err
			}
			cur.Status = StatusPaid
			cur.UpdatedAt = paidAt
		}
		if err := s.Orders.SettlePayment(ctx, p); err != nil {
			return err
		}
		o = cur
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	switch {
	case refunded:
		s.log().Warn("charge refunded, order left new while charging",
			zap.String("order_id", orderID),
			zap.String("status", string(o.Status)),
		)
		return nil, nil, fmt.Errorf("%w: order is %s, payment refunded", ErrInvalidTransition, o.Status)
	case outcome.Success:
		s.log().Info("order paid", zap.String("order_id", orderID), zap.String("method", string(method)))
		s.emit(ctx, TopicOrderPaid, EventOrderPaid, orderID, PaymentPayload{OrderID: orderID, Amount: p.Amount, Method: method})
	default:
		s.log().Info("payment declined", zap.String("order_id", orderID), zap.String("reason", outcome.Reason))
		s.emit(ctx, TopicPaymentFailed, EventPaymentFailed, orderID, PaymentPayload{OrderID: orderID, Amount: p.Amount, Method: method, Reason: outcome.Reason})
	}
	return o, p, nil
}

func (s *Service) GetPayment(ctx context.Context, actor auth.Actor, orderID string) (*Payment, error) {
	if _, err := s.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.Orders.GetPayment(ctx, orderID)
}

// RequiredComponents is the composition of qty copies of one bouquet.
func (s *Service) RequiredComponents(ctx context.Context, bouquetID string, qty int) ([]catalog.Requirement, error) {
	bs, err := s.Catalog.GetBouquets(ctx, []string{bouquetID})
	if err != nil {
		return nil, err
	}
	b, ok := bs[bouquetID]
	if !ok {
		return nil, fmt.Errorf("%w: bouquet %s", catalog.ErrNotFound, bouquetID)
	}
	reqs, err := catalog.RequiredComponents(b, qty)
	if err != nil {
		return nil, err
	}
	return catalog.Ordered(reqs), nil
}

// requirements aggregates the components of every line of o.
func (s *Service) requirements(ctx context.Context, o *Order) ([]catalog.Requirement, error) {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.BouquetID)
	}
	bouquets, err := s.Catalog.GetBouquets(ctx, ids)
	if err != nil {
		return nil, err
	}
	total := map[string]catalog.Requirement{}
	for _, it := range o.Items {
		b, ok := bouquets[it.BouquetID]
		if !ok {
			return nil, fmt.Errorf("%w: bouquet %s", catalog.ErrNotFound, it.BouquetID)
		}
		reqs, err := catalog.RequiredComponents(b, it.Quantity)
		if err != nil {
			return nil, err
		}
		catalog.Merge(total, reqs)
	}
	return catalog.Ordered(total), nil
}

// CheckStockAvailability lists every component of the order the stock
// cannot cover right now. An empty result means the order can be assembled.
func (s *Service) CheckStockAvailability(ctx context.Context, o *Order) ([]Shortfall, error) {
	reqs, err := s.requirements(ctx, o)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.Component.ID
	}
	avail, err := s.Ledger.Available(ctx, ids)
	if err != nil {
		return nil, err
	}
	var out []Shortfall
	for _, r := range reqs {
		have := avail[r.Component.ID]
		if s.Ledger.Policy.Covers(r.Component.Kind, r.Amount, have) {
			continue
		}
		out = append(out, Shortfall{
			ComponentID: r.Component.ID,
			Name:        r.Component.Name,
			Kind:        r.Component.Kind,
			Required:    r.Amount,
			Available:   have,
		})
	}
	return out, nil
}

func (s *Service) CheckStock(ctx context.Context, actor auth.Actor, orderID string) ([]Shortfall, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, auth.ActionCheckStock, o.Ownership()).Err(); err != nil {
		return nil, err
	}
	return s.CheckStockAvailability(ctx, o)
}

// DeductAllStockComponents consumes the aggregated components of o. It runs
// in the transaction carried by ctx, or in a new one, so a shortfall on any
// component leaves every batch as it was.
func (s *Service) DeductAllStockComponents(ctx context.Context, o *Order) ([]ConsumedComponent, error) {
	var consumed []ConsumedComponent
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		reqs, err := s.requirements(ctx, o)
		if err != nil {
			return err
		}
		consumed = consumed[:0]
		for _, r := range reqs {
			taken, err := s.Ledger.Deduct(ctx, o.ID, r.Component, r.Amount)
			if err != nil {
				return err
			}
			consumed = append(consumed, ConsumedComponent{
				ComponentID: r.Component.ID,
				Amount:      r.Amount,
				Batches:     len(taken),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// CompleteAssembly moves a paid order to ready and consumes its stock in the
// same transaction.
func (s *Service) CompleteAssembly(ctx context.Context, actor auth.Actor, orderID string) (Transition, error) {
	var consumed []ConsumedComponent
	t, err := s.transition(ctx, actor, orderID, auth.ActionCompleteAssembly, StatusPaid, StatusReady,
		func(ctx context.Context, o *Order) error {
			var err error
			consumed, err = s.DeductAllStockComponents(ctx, o)
			return err
		})
	if err != nil {
		var short *stock.InsufficientStockError
		if errors.As(err, &short) {
			s.log().Warn("assembly blocked by stock",
				zap.String("order_id", orderID),
				zap.String("component_id", short.Component.ID),
				zap.Float64("required", short.Required),
				zap.Float64("available", short.Available),
			)
		}
		return Transition{}, err
	}
	if t.Changed {
		s.emit(ctx, TopicOrderReady, EventOrderReady, orderID, OrderReadyPayload{
			OrderID:   orderID,
			FloristID: t.Order.FloristID,
			Consumed:  consumed,
		})
	}
	return t, nil
}

func (s *Service) StartDelivery(ctx context.Context, actor auth.Actor, orderID string) (Transition, error) {
	t, err := s.transition(ctx, actor, orderID, auth.ActionStartDelivery, StatusReady, StatusDelivering, nil)
	if err == nil && t.Changed {
		s.emitStatus(ctx, TopicDeliveryProgress, EventDeliveryStarted, actor, t)
	}
	return t, err
}

// CompleteDelivery is idempotent: calling it on a delivered order returns
// Changed=false.
func (s *Service) CompleteDelivery(ctx context.Context, actor auth.Actor, orderID string) (Transition, error) {
	t, err := s.transition(ctx, actor, orderID, auth.ActionCompleteDelivery, StatusDelivering, StatusDelivered, nil)
	if err == nil && t.Changed {
		s.emitStatus(ctx, TopicDeliveryProgress, EventOrderDelivered, actor, t)
	}
	return t, err
}

func (s *Service) ConfirmCompletion(ctx context.Context, actor auth.Actor, orderID string) (Transition, error) {
	t, err := s.transition(ctx, actor, orderID, auth.ActionConfirmCompletion, StatusDelivered, StatusCompleted, nil)
	if err == nil && t.Changed {
		s.emitStatus(ctx, TopicOrderCompleted, EventOrderCompleted, actor, t)
	}
	return t, err
}

func (s *Service) emitStatus(ctx context.Context, topic, eventType string, actor auth.Actor, t Transition) {
	s.emit(ctx, topic, eventType, t.Order.ID, StatusChangedPayload{
		OrderID: t.Order.ID,
		From:    t.From,
		To:      t.Order.Status,
		ActorID: actor.ID,
	})
}

// transition locks the order, authorizes actor, and moves it from -> to.
// An order already in to is returned unchanged; any other state is an
// ErrInvalidTransition. during runs inside the transaction before the
// status write.
func (s *Service) transition(ctx context.Context, actor auth.Actor, orderID string, act auth.Action, from, to Status,
	during func(ctx context.Context, o *Order) error) (Transition, error) {
	var t Transition
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := auth.Authorize(actor, act, o.Ownership()).Err(); err != nil {
			return err
		}
		t = Transition{Order: o, From: o.Status}
		if o.Status == to {
			return nil
		}
		if o.Status != from || !CanTransition(from, to) {
			return fmt.Errorf("%w: order %s is %s, need %s", ErrInvalidTransition, orderID, o.Status, from)
		}
		if during != nil {
			if err := during(ctx, o); err != nil {
				return err
			}
		}
		if err := s.Orders.UpdateStatus(ctx, orderID, from, to); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = s.now()
		t.Changed = true
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	if t.Changed {
		s.log().Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(t.From)),
			zap.String("to", string(to)),
			zap.String("actor_id", actor.ID),
		)
	}
	return t, nil
}

// Cancel is allowed before assembly. A captured payment is marked refunded.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, orderID string) (Transition, error) {
	var t Transition
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := auth.Authorize(actor, auth.ActionCancel, o.Ownership()).Err(); err != nil {
			return err
		}
		t = Transition{Order: o, From: o.Status}
		if o.Status == StatusCanceled {
			return nil
		}
		if !Cancelable(o.Status) {
			return fmt.Errorf("%w: order %s is %s and can no longer be canceled", ErrInvalidTransition, orderID, o.Status)
		}
		if err := s.Orders.UpdateStatus(ctx, orderID, o.Status, StatusCanceled); err != nil {
			return err
		}
		p, err := s.Orders.GetPayment(ctx, orderID)
		if err != nil {
			return err
		}
		if p.Status == PaymentSuccess {
			p.Status = PaymentRefunded
			if err := s.Orders.SavePayment(ctx, p); err != nil {
				return err
			}
		}
		o.Status = StatusCanceled
		o.UpdatedAt = s.now()
		t.Changed = true
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	if t.Changed {
		s.log().Info("order canceled", zap.String("order_id", orderID), zap.String("from", string(t.From)), zap.String("actor_id", actor.ID))
		s.emitStatus(ctx, TopicOrderCanceled, EventOrderCanceled, actor, t)
	}
	return t, nil
}

// UpdateCourierLocation stores the courier position, rounded to 6 decimals,
// while the order is on the way.
func (s *Service) UpdateCourierLocation(ctx context.Context, actor auth.Actor, orderID string, lat, lon float64) (Location, error) {
	if !validCoords(lat, lon) || math.IsNaN(lat) || math.IsNaN(lon) {
		return Location{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Location{}, err
	}
	if err := auth.Authorize(actor, auth.ActionUpdateLocation, o.Ownership()).Err(); err != nil {
		return Location{}, err
	}
	if o.Status != StatusDelivering {
		return Location{}, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, orderID, o.Status)
	}
	loc := Location{Lat: round6(lat), Lon: round6(lon), UpdatedAt: s.now()}
	if err := s.Orders.UpdateCourierLocation(ctx, orderID, loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

func (s *Service) Get(ctx context.Context, actor auth.Actor, orderID string) (*Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, auth.ActionView, o.Ownership()).Err(); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns the dashboard of actor: own orders for a client, assigned
// work for florists and couriers, everything for staff.
func (s *Service) List(ctx context.Context, actor auth.Actor, f Filter) ([]Order, error) {
	if actor.ID == "" {
		return nil, auth.Decision{Reason: "anonymous actor"}.Err()
	}
	f.CustomerID, f.FloristID, f.CourierID = "", "", ""
	switch actor.Role {
	case auth.RoleClient:
		f.CustomerID = actor.ID
	case auth.RoleFlorist:
		f.FloristID = actor.ID
		if len(f.Statuses) == 0 {
			f.Statuses = []Status{StatusPaid, StatusReady}
		}
	case auth.RoleCourier:
		f.CourierID = actor.ID
		if len(f.Statuses) == 0 {
			f.Statuses = []Status{StatusReady, StatusDelivering, StatusDelivered, StatusCompleted}
		}
	case auth.RoleStaff:
	default:
		return nil, auth.Decision{Reason: fmt.Sprintf("unknown role %q", actor.Role)}.Err()
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Orders.List(ctx, f)
}
