// Package generator produces statistically shaped synthetic order data.
// It performs no I/O; every value is drawn from the random source supplied
// at construction.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"snowstream/pkg/errors"
	"snowstream/pkg/models"
)

var firstNames = []string{
	"John", "Sarah", "Michael", "Emily", "David", "Jessica", "Chris", "Ashley",
	"Matt", "Amanda", "Ryan", "Lauren", "Kevin", "Nicole", "Brian", "Rachel",
	"Tyler", "Megan", "Josh", "Katie",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson",
	"Thomas", "Taylor", "Moore", "Jackson", "Martin",
}

var streets = []string{
	"Main St", "Oak Ave", "Maple Dr", "Cedar Ln", "Pine Rd", "Elm St",
	"Washington Blvd", "Lake View Dr", "Mountain Way", "Summit Trail",
}

var cities = []string{
	"Denver", "Salt Lake City", "Boulder", "Aspen", "Park City", "Jackson",
	"Telluride", "Steamboat Springs", "Vail", "Breckenridge", "Mammoth Lakes",
	"Tahoe City", "Whistler", "Banff", "Portland",
}

var states = []string{"CO", "UT", "WY", "CA", "WA", "OR", "MT", "ID", "NV", "BC"}

// Segments are assigned randomly rather than looked up per customer; during
// high-volume streaming a per-row lookup would dominate ingestion time.
var segments = []string{"Premium", "Standard", "Basic"}

var productNames = []string{
	"Powder Skis", "All-Mountain Skis", "Freestyle Snowboard", "Freeride Snowboard",
	"Ski Boots", "Snowboard Boots", "Ski Poles", "Ski Goggles", "Snowboard Bindings", "Ski Helmet",
}

var productCategories = []string{
	"Skis", "Skis", "Snowboards", "Snowboards",
	"Boots", "Boots", "Accessories", "Accessories", "Accessories", "Accessories",
}

// productIDBase offsets catalog indexes into product identifiers.
const productIDBase = 1001

// Generator produces synthetic orders, items and customers. Not safe for
// concurrent use; each worker owns its own Generator.
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

// New creates a Generator backed by the given random source.
func New(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd, now: time.Now}
}

// NewSeeded creates a Generator with a deterministic seed.
func NewSeeded(seed int64) *Generator {
	return New(rand.New(rand.NewSource(seed)))
}

// RandomCustomerID draws a customer id uniformly from [1, maxCustomerID].
func (g *Generator) RandomCustomerID(maxCustomerID int) (int, error) {
	if maxCustomerID <= 0 {
		return 0, errors.ValidationError("max_customer_id", maxCustomerID, "must be positive")
	}
	return 1 + g.rnd.Intn(maxCustomerID), nil
}

// RandomCustomerIDInRange draws a customer id uniformly from [lo, hi].
func (g *Generator) RandomCustomerIDInRange(lo, hi int) (int, error) {
	if lo <= 0 || hi < lo {
		return 0, errors.ValidationError("customer_id_range",
			fmt.Sprintf("%d-%d", lo, hi), "range must be positive and not inverted")
	}
	return lo + g.rnd.Intn(hi-lo+1), nil
}

// RandomItemCount returns the number of line items for one order, in [1, 10].
func (g *Generator) RandomItemCount() int {
	return 1 + g.rnd.Intn(10)
}

// GenerateOrder produces one order for the given customer.
func (g *Generator) GenerateOrder(customerID int) models.Order {
	// Spread orders across days and times of day, not just noon.
	age := time.Duration(1+g.rnd.Intn(365))*24*time.Hour +
		time.Duration(g.rnd.Intn(24))*time.Hour +
		time.Duration(g.rnd.Intn(60))*time.Minute +
		time.Duration(g.rnd.Intn(60))*time.Second
	orderDate := g.now().Add(-age)

	// Log-normal base magnitude gives a realistic long tail (mean around
	// $150 with a wide spread), clamped to a floor before jittering.
	base := math.Exp(5.0 + 1.2*g.rnd.NormFloat64())
	totalAmount := g.randomAmount(math.Max(10.0, base), math.Max(50.0, base*1.5))

	var discount float64
	if g.rnd.Intn(10) >= 7 {
		discount = float64(5 + g.rnd.Intn(21))
	}

	return models.Order{
		OrderID:         uuid.NewString(),
		CustomerID:      customerID,
		OrderDate:       orderDate,
		OrderStatus:     g.randomStatus(),
		TotalAmount:     totalAmount,
		DiscountPercent: discount,
		ShippingCost:    g.randomAmount(5.0, 50.0),
	}
}

// GenerateOrderItems produces count line items referencing orderID.
func (g *Generator) GenerateOrderItems(orderID string, count int) []models.OrderItem {
	items := make([]models.OrderItem, 0, count)
	for i := 0; i < count; i++ {
		idx := g.rnd.Intn(len(productNames))
		quantity := 1 + g.rnd.Intn(5)
		unitPrice := g.randomAmount(10.0, 500.0)

		items = append(items, models.OrderItem{
			OrderItemID:     uuid.NewString(),
			OrderID:         orderID,
			ProductID:       productIDBase + idx,
			ProductName:     productNames[idx],
			ProductCategory: productCategories[idx],
			Quantity:        quantity,
			UnitPrice:       unitPrice,
			LineTotal:       models.RoundCents(unitPrice * float64(quantity)),
		})
	}
	return items
}

// GenerateCustomer produces one synthetic customer row for table seeding.
func (g *Generator) GenerateCustomer(customerID int) models.Customer {
	return models.Customer{
		CustomerID: customerID,
		FirstName:  firstNames[g.rnd.Intn(len(firstNames))],
		LastName:   lastNames[g.rnd.Intn(len(lastNames))],
		Email:      fmt.Sprintf("customer%d@email.com", customerID),
		Phone: fmt.Sprintf("555-%03d-%04d",
			100+g.rnd.Intn(900), 1000+g.rnd.Intn(9000)),
		Address: fmt.Sprintf("%d %s",
			100+g.rnd.Intn(9900), streets[g.rnd.Intn(len(streets))]),
		City:             cities[g.rnd.Intn(len(cities))],
		State:            states[g.rnd.Intn(len(states))],
		ZipCode:          fmt.Sprintf("%05d", 10000+g.rnd.Intn(90000)),
		RegistrationDate: g.now().Add(-time.Duration(1+g.rnd.Intn(1825)) * 24 * time.Hour),
		CustomerSegment:  segments[g.rnd.Intn(len(segments))],
	}
}

// RandomSegment returns a randomly assigned customer segment.
func (g *Generator) RandomSegment() string {
	return segments[g.rnd.Intn(len(segments))]
}

// randomStatus draws from the fixed cumulative-probability table:
// 65% Completed, 15% Shipped, 10% Processing, 7% Pending, 3% Cancelled.
func (g *Generator) randomStatus() models.OrderStatus {
	r := g.rnd.Float64()
	switch {
	case r < 0.65:
		return models.StatusCompleted
	case r < 0.80:
		return models.StatusShipped
	case r < 0.90:
		return models.StatusProcessing
	case r < 0.97:
		return models.StatusPending
	default:
		return models.StatusCancelled
	}
}

// randomAmount draws uniformly from [min, max] and rounds half-up to cents.
func (g *Generator) randomAmount(min, max float64) float64 {
	return models.RoundCents(min + (max-min)*g.rnd.Float64())
}
