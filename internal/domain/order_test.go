package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("42", "user-1", "CHF", decimal.RequireFromString("54.00"))
	require.NoError(t, err)
	assert.Equal(t, OrderStatusNew, o.Status)

	_, err = NewOrder("", "user-1", "CHF", decimal.NewFromInt(1))
	assert.Error(t, err)
	_, err = NewOrder("43", "user-1", "CHF", decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestOrder_MarkAsPaid(t *testing.T) {
	o, err := NewOrder("42", "user-1", "CHF", decimal.RequireFromString("54.00"))
	require.NoError(t, err)

	require.NoError(t, o.MarkAsPaid(decimal.RequireFromString("54"), "8628366", "Postfinance"))
	assert.Equal(t, OrderStatusPaid, o.Status)
	assert.Equal(t, "8628366", o.TransactionID)
	assert.True(t, o.FullyPaid())

	assert.ErrorIs(t, o.MarkAsPaid(decimal.NewFromInt(1), "x", "Postfinance"), ErrOrderAlreadyPaid)
}

func TestOrder_FullyPaidPartial(t *testing.T) {
	o, err := NewOrder("42", "user-1", "CHF", decimal.RequireFromString("54.00"))
	require.NoError(t, err)
	require.NoError(t, o.MarkAsPaid(decimal.RequireFromString("10"), "1", "Postfinance"))

	assert.False(t, o.FullyPaid())
}
