// Package cart holds the checkout view of a shopping cart. Session storage
// belongs to the storefront; the order engine only reads lines and clears
// the cart once the order is stored.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type Line struct {
	BouquetID string          `json:"bouquet_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart interface {
	Lines() []Line
	TotalPrice() decimal.Decimal
	// Len is the total number of bouquets across lines.
	Len() int
	Clear(ctx context.Context) error
}

// Memory is a Cart built from request data. Lines for the same bouquet are
// merged.
type Memory struct {
	mu    sync.Mutex
	lines []Line
}

func NewMemory(lines ...Line) *Memory {
	m := &Memory{}
	for _, l := range lines {
		m.Add(l)
	}
	return m
}

func (m *Memory) Add(l Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lines {
		if m.lines[i].BouquetID == l.BouquetID {
			m.lines[i].Quantity += l.Quantity
			m.lines[i].UnitPrice = l.UnitPrice
			return
		}
	}
	m.lines = append(m.lines, l)
}

func (m *Memory) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *Memory) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range m.Lines() {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (m *Memory) Len() int {
	n := 0
	for _, l := range m.Lines() {
		n += l.Quantity
	}
	return n
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
	return nil
}
