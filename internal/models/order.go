package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ActiveOrderStatuses are the statuses an admin may still move an order out of.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// CancellableOrderStatuses are the statuses from which an order may be cancelled.
var CancellableOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
}

func (s OrderStatus) IsValid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled
}

// SizeLabel is a size key in a product's stock map. Clients send sizes as
// either JSON strings ("M") or numbers (42); both decode to the same label.
type SizeLabel string

func (s *SizeLabel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SizeLabel(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = SizeLabel(num.String())
	return nil
}

func (s SizeLabel) String() string { return string(s) }

// OrderItem is a line item snapshotted at order creation time.
type OrderItem struct {
	ProductID string    `json:"product" bson:"product"`
	Name      string    `json:"name" bson:"name"`
	ImageURL  string    `json:"imageUrl" bson:"imageUrl"`
	Price     float64   `json:"price" bson:"price"`
	Size      SizeLabel `json:"size" bson:"size"`
	Quantity  int       `json:"quantity" bson:"quantity"`
}

type ShippingAddress struct {
	Address    string `json:"address" bson:"address"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

type PaymentDetails struct {
	Method        string        `json:"method" bson:"method"`
	TransactionID string        `json:"transactionId" bson:"transactionId"`
	Status        PaymentStatus `json:"status" bson:"status"`
}

// Order is the persisted order document.
type Order struct {
	ID              string          `json:"id" bson:"_id"`
	UserID          string          `json:"user" bson:"user"`
	OrderItems      []OrderItem     `json:"orderItems" bson:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" bson:"paymentMethod"`
	PaymentDetails  PaymentDetails  `json:"paymentDetails" bson:"paymentDetails"`
	TotalPrice      float64         `json:"totalPrice" bson:"totalPrice"`
	OrderStatus     OrderStatus     `json:"orderStatus" bson:"orderStatus"`
	ConfirmedAt     *time.Time      `json:"confirmedAt,omitempty" bson:"confirmedAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty" bson:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// CalculateTotal recomputes TotalPrice as the sum of price × quantity over
// the order items, rounded to cents.
func (o *Order) CalculateTotal() {
	o.TotalPrice = ItemsTotal(o.OrderItems)
}

// ItemsTotal sums price × quantity over items using exact decimal arithmetic.
func ItemsTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return o.OrderStatus == OrderStatusPending || o.OrderStatus == OrderStatusConfirmed
}

// SetStatus moves the order to status and stamps the matching timestamp
// field if it has not been stamped before.
func (o *Order) SetStatus(status OrderStatus, at time.Time) {
	o.OrderStatus = status
	o.UpdatedAt = at

	field := o.timestampField(status)
	if field != nil && *field == nil {
		stamp := at
		*field = &stamp
	}
}

func (o *Order) timestampField(status OrderStatus) **time.Time {
	switch status {
	case OrderStatusConfirmed:
		return &o.ConfirmedAt
	case OrderStatusShipped:
		return &o.ShippedAt
	case OrderStatusDelivered:
		return &o.DeliveredAt
	case OrderStatusCancelled:
		return &o.CancelledAt
	default:
		return nil
	}
}

// TimestampField returns the document field stamped when an order first
// enters status, or "" if the status has no timestamp.
func TimestampField(status OrderStatus) string {
	switch status {
	case OrderStatusConfirmed:
		return "confirmedAt"
	case OrderStatusShipped:
		return "shippedAt"
	case OrderStatusDelivered:
		return "deliveredAt"
	case OrderStatusCancelled:
		return "cancelledAt"
	default:
		return ""
	}
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.OrderItems = append([]OrderItem(nil), o.OrderItems...)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentDetails  PaymentDetails  `json:"paymentDetails"`
}

// UpdateOrderStatusRequest is the body of PUT /api/orders/:id.
type UpdateOrderStatusRequest struct {
	NewStatus OrderStatus `json:"newStatus"`
}

// OrderListFilter narrows order listings. Results are always newest first.
type OrderListFilter struct {
	UserID string
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// SystemActor is used for transitions driven by internal events.
var SystemActor = Actor{UserID: "system", IsAdmin: true}
