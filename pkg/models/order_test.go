package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundCents(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact cents unchanged", 12.34, 12.34},
		{"rounds half up", 10.005, 10.01},
		{"rounds down below half", 10.004, 10.00},
		{"zero", 0, 0},
		{"whole dollars", 150, 150},
		{"long fraction", 19.999999, 20.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundCents(tt.in), 1e-9)
		})
	}
}

func TestRoundCentsIdempotent(t *testing.T) {
	values := []float64{0.01, 5.55, 123.45, 9999.99, 42.10}
	for _, v := range values {
		assert.Equal(t, v, RoundCents(v))
	}
}

func TestOrderRow(t *testing.T) {
	date := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	o := Order{
		OrderID:         "abc-123",
		CustomerID:      42,
		OrderDate:       date,
		OrderStatus:     StatusShipped,
		TotalAmount:     199.99,
		DiscountPercent: 10,
		ShippingCost:    12.50,
	}

	row := o.Row()
	assert.Equal(t, "abc-123", row["order_id"])
	assert.Equal(t, 42, row["customer_id"])
	assert.Equal(t, "2025-06-01 14:30:05", row["order_date"])
	assert.Equal(t, "Shipped", row["order_status"])
	assert.Equal(t, 199.99, row["total_amount"])
}

func TestOrderItemRow(t *testing.T) {
	item := OrderItem{
		OrderItemID:     "item-1",
		OrderID:         "abc-123",
		ProductID:       1003,
		ProductName:     "Freestyle Snowboard",
		ProductCategory: "Snowboards",
		Quantity:        3,
		UnitPrice:       120.10,
		LineTotal:       360.30,
	}

	row := item.Row()
	assert.Equal(t, "item-1", row["order_item_id"])
	assert.Equal(t, "abc-123", row["order_id"])
	assert.Equal(t, 1003, row["product_id"])
	assert.Equal(t, 3, row["quantity"])
	assert.Equal(t, 360.30, row["line_total"])
}
