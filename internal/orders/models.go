package orders

import (
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID               string          `json:"id"`
	ExternalID       string          `json:"external_id,omitempty"`
	CustomerID       string          `json:"customer_id"`
	Status           Status          `json:"status"`
	FloristID        string          `json:"florist_id,omitempty"`
	CourierID        string          `json:"courier_id,omitempty"`
	DeliveryAt       time.Time       `json:"delivery_at"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	DeliveryCost     decimal.Decimal `json:"delivery_cost"`
	DeliveryDistance float64         `json:"delivery_distance"`
	Address          Address         `json:"address"`
	Recipient        Recipient       `json:"recipient"`
	CourierLocation  *Location       `json:"courier_location,omitempty"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BouquetCost is the order total without delivery.
func (o *Order) BouquetCost() decimal.Decimal { return o.TotalCost.Sub(o.DeliveryCost) }

func (o *Order) Ownership() auth.Ownership {
	return auth.Ownership{CustomerID: o.CustomerID, FloristID: o.FloristID, CourierID: o.CourierID}
}

type OrderItem struct {
	BouquetID string          `json:"bouquet_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Address struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Payment struct {
	OrderID      string          `json:"order_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       PaymentStatus   `json:"status"`
	Method       PaymentMethod   `json:"method"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Filter selects orders for dashboards. Zero fields match everything.
type Filter struct {
	CustomerID string
	FloristID  string
	CourierID  string
	Statuses   []Status
	Limit      int
	Offset     int
}
