package models

import (
	"math"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusCompleted  OrderStatus = "Completed"
	StatusShipped    OrderStatus = "Shipped"
	StatusProcessing OrderStatus = "Processing"
	StatusPending    OrderStatus = "Pending"
	StatusCancelled  OrderStatus = "Cancelled"
)

// TimestampFormat is the wire format for order timestamps.
const TimestampFormat = "2006-01-02 15:04:05"

// Order is a single synthetic order destined for the ORDERS table.
type Order struct {
	OrderID         string
	CustomerID      int
	OrderDate       time.Time
	OrderStatus     OrderStatus
	TotalAmount     float64
	DiscountPercent float64
	ShippingCost    float64
}

// Row converts the order into an ingestion row keyed by column name.
func (o Order) Row() map[string]interface{} {
	return map[string]interface{}{
		"order_id":         o.OrderID,
		"customer_id":      o.CustomerID,
		"order_date":       o.OrderDate.Format(TimestampFormat),
		"order_status":     string(o.OrderStatus),
		"total_amount":     o.TotalAmount,
		"discount_percent": o.DiscountPercent,
		"shipping_cost":    o.ShippingCost,
	}
}

// OrderItem is a single line item belonging to an order.
type OrderItem struct {
	OrderItemID     string
	OrderID         string
	ProductID       int
	ProductName     string
	ProductCategory string
	Quantity        int
	UnitPrice       float64
	LineTotal       float64
}

// Row converts the item into an ingestion row keyed by column name.
func (i OrderItem) Row() map[string]interface{} {
	return map[string]interface{}{
		"order_item_id":    i.OrderItemID,
		"order_id":         i.OrderID,
		"product_id":       i.ProductID,
		"product_name":     i.ProductName,
		"product_category": i.ProductCategory,
		"quantity":         i.Quantity,
		"unit_price":       i.UnitPrice,
		"line_total":       i.LineTotal,
	}
}

// Customer is a synthetic customer row used to seed the CUSTOMERS table.
type Customer struct {
	CustomerID       int
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Address          string
	City             string
	State            string
	ZipCode          string
	RegistrationDate time.Time
	CustomerSegment  string
}

// Row converts the customer into an ingestion row keyed by column name.
func (c Customer) Row() map[string]interface{} {
	return map[string]interface{}{
		"customer_id":       c.CustomerID,
		"first_name":        c.FirstName,
		"last_name":         c.LastName,
		"email":             c.Email,
		"phone":             c.Phone,
		"address":           c.Address,
		"city":              c.City,
		"state":             c.State,
		"zip_code":          c.ZipCode,
		"registration_date": c.RegistrationDate.Format("2006-01-02"),
		"customer_segment":  c.CustomerSegment,
	}
}

// RoundCents rounds a non-negative amount half-up to two decimal places.
// Every monetary value in the pipeline goes through this exact rule so that
// downstream recomputation (line_total = unit_price * quantity) matches to
// the cent.
func RoundCents(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
