package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindFlower  Kind = "flower"
	KindRibbon  Kind = "ribbon"
	KindWrapper Kind = "wrapper"
)

// Rank is the global deduction order: flowers, then ribbons, then wrappers.
func (k Kind) Rank() int {
	switch k {
	case KindFlower:
		return 0
	case KindRibbon:
		return 1
	case KindWrapper:
		return 2
	}
	return 3
}

// Discrete reports whether amounts of this kind are whole counts.
func (k Kind) Discrete() bool { return k == KindFlower }

// Unit is used in shortfall messages.
func (k Kind) Unit() string {
	if k.Discrete() {
		return "pcs"
	}
	return "m"
}

type Component struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Link is one component line of a bouquet: how much of it goes into a
// single bouquet.
type Link struct {
	Component Component `json:"component"`
	Amount    float64   `json:"amount"`
}

type Bouquet struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"is_active"`
	Links    []Link          `json:"components"`
}

var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrInvalidAmount = errors.New("catalog: invalid amount")
)
