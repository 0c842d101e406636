package stock

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
)

type Status string

const (
	StatusAvailable  Status = "available"
	StatusReserved   Status = "reserved"
	StatusUsed       Status = "used"
	StatusOutOfStock Status = "out_of_stock"
	StatusDamaged    Status = "damaged"
	StatusExpired    Status = "expired"
)

// DepletedStatus is what a batch of kind k becomes once emptied.
func DepletedStatus(k catalog.Kind) Status {
	if k.Discrete() {
		return StatusUsed
	}
	return StatusOutOfStock
}

// Batch is one delivery of a component. Batches are never deleted.
type Batch struct {
	ID           int64     `json:"id"`
	ComponentID  string    `json:"component_id"`
	DeliveryDate time.Time `json:"delivery_date"`
	Remaining    float64   `json:"remaining"`
	Status       Status    `json:"status"`
	BatchNumber  string    `json:"batch_number,omitempty"`
}

// Consumption records how much was taken from one batch. WrittenOff is the
// offcut dropped when a length batch ends within tolerance, so
// Before - Taken - WrittenOff == After.
type Consumption struct {
	BatchID     int64   `json:"batch_id"`
	ComponentID string  `json:"component_id"`
	Taken       float64 `json:"taken"`
	WrittenOff  float64 `json:"written_off,omitempty"`
	Before      float64 `json:"before"`
	After       float64 `json:"after"`
	Status      Status  `json:"status"`
}

type Movement struct {
	ID              string
	BatchID         int64
	ComponentID     string
	ReferenceID     string
	QuantityChange  float64
	RemainingBefore float64
	RemainingAfter  float64
	Reason          string
	CreatedAt       time.Time
}

const (
	ReasonOrderAssembly  = "order_assembly"
	ReasonIntake         = "intake"
	ReasonOffcutWriteOff = "offcut_writeoff"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidBatch      = errors.New("invalid batch")
)

// InsufficientStockError is recoverable: the caller keeps its state and may
// retry after restock.
type InsufficientStockError struct {
	Component catalog.Component
	Required  float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %q: required %s %s, available %s %s",
		e.Component.Name,
		formatAmount(e.Required), e.Component.Kind.Unit(),
		formatAmount(e.Available), e.Component.Kind.Unit())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
