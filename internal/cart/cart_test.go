package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	c := NewMemory(
		Line{BouquetID: "b1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
		Line{BouquetID: "b2", Quantity: 1, UnitPrice: decimal.RequireFromString("30")},
		Line{BouquetID: "b1", Quantity: 1, UnitPrice: decimal.RequireFromString("10.50")},
	)

	require.Len(t, c.Lines(), 2)
	assert.Equal(t, 4, c.Len())
	assert.True(t, decimal.RequireFromString("61.50").Equal(c.TotalPrice()))
	assert.True(t, decimal.RequireFromString("31.50").Equal(c.Lines()[0].Subtotal()))

	require.NoError(t, c.Clear(context.Background()))
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.TotalPrice().IsZero())
}
