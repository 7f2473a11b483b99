package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowstream/pkg/models"
)

func TestGenerateOrderProperties(t *testing.T) {
	g := NewSeeded(1)

	for i := 0; i < 1000; i++ {
		order := g.GenerateOrder(42)

		assert.NotEmpty(t, order.OrderID)
		assert.Equal(t, 42, order.CustomerID)
		assert.GreaterOrEqual(t, order.TotalAmount, 0.0)
		assert.GreaterOrEqual(t, order.ShippingCost, 0.0)
		assert.GreaterOrEqual(t, order.DiscountPercent, 0.0)
		assert.LessOrEqual(t, order.DiscountPercent, 25.0)

		// All currency values are exactly two decimal places.
		assert.Equal(t, order.TotalAmount, models.RoundCents(order.TotalAmount))
		assert.Equal(t, order.ShippingCost, models.RoundCents(order.ShippingCost))

		switch order.OrderStatus {
		case models.StatusCompleted, models.StatusShipped, models.StatusProcessing,
			models.StatusPending, models.StatusCancelled:
		default:
			t.Fatalf("unexpected order status %q", order.OrderStatus)
		}
	}
}

func TestStatusDistributionShape(t *testing.T) {
	g := NewSeeded(7)

	counts := map[models.OrderStatus]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[g.GenerateOrder(1).OrderStatus]++
	}

	// Loose bounds around the 65/15/10/7/3 weights.
	assert.InDelta(t, 0.65, float64(counts[models.StatusCompleted])/n, 0.03)
	assert.InDelta(t, 0.15, float64(counts[models.StatusShipped])/n, 0.03)
	assert.InDelta(t, 0.10, float64(counts[models.StatusProcessing])/n, 0.03)
	assert.InDelta(t, 0.07, float64(counts[models.StatusPending])/n, 0.02)
	assert.InDelta(t, 0.03, float64(counts[models.StatusCancelled])/n, 0.02)
}

func TestGenerateOrderItems(t *testing.T) {
	g := NewSeeded(2)

	items := g.GenerateOrderItems("order-1", 8)
	require.Len(t, items, 8)

	for _, item := range items {
		assert.NotEmpty(t, item.OrderItemID)
		assert.Equal(t, "order-1", item.OrderID)
		assert.GreaterOrEqual(t, item.ProductID, 1001)
		assert.LessOrEqual(t, item.ProductID, 1010)
		assert.NotEmpty(t, item.ProductName)
		assert.NotEmpty(t, item.ProductCategory)
		assert.GreaterOrEqual(t, item.Quantity, 1)
		assert.LessOrEqual(t, item.Quantity, 5)

		// line_total == round(unit_price * quantity, 2) exactly.
		assert.Equal(t,
			models.RoundCents(item.UnitPrice*float64(item.Quantity)),
			item.LineTotal)
	}
}

func TestRandomItemCountBounds(t *testing.T) {
	g := NewSeeded(3)
	for i := 0; i < 1000; i++ {
		n := g.RandomItemCount()
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 10)
	}
}

func TestRandomCustomerIDInRange(t *testing.T) {
	g := NewSeeded(4)

	for i := 0; i < 1000; i++ {
		id, err := g.RandomCustomerIDInRange(10, 20)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, 10)
		assert.LessOrEqual(t, id, 20)
	}

	// Single-element range is valid.
	id, err := g.RandomCustomerIDInRange(5, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestRandomCustomerIDInvalidRanges(t *testing.T) {
	g := NewSeeded(5)

	_, err := g.RandomCustomerID(0)
	assert.Error(t, err)

	_, err = g.RandomCustomerIDInRange(0, 10)
	assert.Error(t, err)

	_, err = g.RandomCustomerIDInRange(10, 9)
	assert.Error(t, err)
}

func TestGenerateCustomer(t *testing.T) {
	g := NewSeeded(6)

	c := g.GenerateCustomer(123)
	assert.Equal(t, 123, c.CustomerID)
	assert.Equal(t, "customer123@email.com", c.Email)
	assert.NotEmpty(t, c.FirstName)
	assert.NotEmpty(t, c.LastName)
	assert.Len(t, c.ZipCode, 5)
	assert.Contains(t, []string{"Premium", "Standard", "Basic"}, c.CustomerSegment)

	row := c.Row()
	assert.Equal(t, 123, row["customer_id"])
	assert.NotEmpty(t, row["registration_date"])
}
