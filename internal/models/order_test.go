package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_CanCancel(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		expected bool
	}{
		{OrderStatusPending, true},
		{OrderStatusConfirmed, true},
		{OrderStatusShipped, false},
		{OrderStatusDelivered, false},
		{OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order := &Order{OrderStatus: tt.status}
			assert.Equal(t, tt.expected, order.CanCancel())
		})
	}
}

func TestOrder_CalculateTotal(t *testing.T) {
	order := &Order{OrderItems: []OrderItem{
		{Price: 10, Quantity: 2},
		{Price: 0.1, Quantity: 3},
		{Price: 19.99, Quantity: 1},
	}}

	order.CalculateTotal()

	assert.Equal(t, 40.29, order.TotalPrice)
}

func TestOrder_SetStatusStampsOnce(t *testing.T) {
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	order := &Order{OrderStatus: OrderStatusPending}
	order.SetStatus(OrderStatusConfirmed, first)
	order.SetStatus(OrderStatusPending, later)
	order.SetStatus(OrderStatusConfirmed, later)

	require.NotNil(t, order.ConfirmedAt)
	assert.Equal(t, first, *order.ConfirmedAt)
	assert.Equal(t, later, order.UpdatedAt)
	assert.Nil(t, order.ShippedAt)
}

func TestOrderStatus_IsValid(t *testing.T) {
	assert.True(t, OrderStatusShipped.IsValid())
	assert.False(t, OrderStatus("Refunded").IsValid())
	assert.False(t, OrderStatus("").IsValid())
}

func TestSizeLabel_AcceptsNumbersAndStrings(t *testing.T) {
	var items []OrderItem
	body := `[{"product":"p1","size":42,"quantity":1},{"product":"p2","size":"M","quantity":2}]`

	require.NoError(t, json.Unmarshal([]byte(body), &items))

	assert.Equal(t, SizeLabel("42"), items[0].Size)
	assert.Equal(t, SizeLabel("M"), items[1].Size)
}

func TestOrder_CloneIsDeep(t *testing.T) {
	now := time.Now()
	order := &Order{
		OrderItems:  []OrderItem{{Name: "Runner", Quantity: 1}},
		ConfirmedAt: &now,
	}

	clone := order.Clone()
	clone.OrderItems[0].Quantity = 5
	*clone.ConfirmedAt = now.Add(time.Hour)

	assert.Equal(t, 1, order.OrderItems[0].Quantity)
	assert.Equal(t, now, *order.ConfirmedAt)
}

func TestValidSizeLabel(t *testing.T) {
	assert.True(t, ValidSizeLabel("M"))
	assert.True(t, ValidSizeLabel("42"))
	assert.False(t, ValidSizeLabel(""))
	assert.False(t, ValidSizeLabel("4.5"))
	assert.False(t, ValidSizeLabel("$gt"))
}

func TestUpdateProductRequest_Apply(t *testing.T) {
	p := &Product{Name: "Runner", Price: 50, Sizes: map[string]int{"M": 1}}

	req := &UpdateProductRequest{Price: 45, Sizes: map[string]int{"L": 3}}
	req.Apply(p)

	assert.Equal(t, "Runner", p.Name)
	assert.Equal(t, 45.0, p.Price)
	assert.Equal(t, map[string]int{"L": 3}, p.Sizes)
}
