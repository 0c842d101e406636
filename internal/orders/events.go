package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderPaid       = "OrderPaid"
	EventPaymentFailed   = "PaymentFailed"
	EventOrderReady      = "OrderReady"
	EventFloristAssigned = "FloristAssigned"
	EventCourierAssigned = "CourierAssigned"
	EventDeliveryStarted = "DeliveryStarted"
	EventOrderDelivered  = "OrderDelivered"
	EventOrderCompleted  = "OrderCompleted"
	EventOrderCanceled   = "OrderCanceled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Items      []OrderItem     `json:"items"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	DeliveryAt time.Time       `json:"delivery_at"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	ActorID string `json:"actor_id,omitempty"`
}

type PaymentPayload struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  PaymentMethod   `json:"method"`
	Reason  string          `json:"reason,omitempty"`
}

type ConsumedComponent struct {
	ComponentID string  `json:"component_id"`
	Amount      float64 `json:"amount"`
	Batches     int     `json:"batches"`
}

type OrderReadyPayload struct {
	OrderID   string              `json:"order_id"`
	FloristID string              `json:"florist_id"`
	Consumed  []ConsumedComponent `json:"consumed"`
}

type AssignedPayload struct {
	OrderID  string `json:"order_id"`
	WorkerID string `json:"worker_id"`
	Role     string `json:"role"`
}
