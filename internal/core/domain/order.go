package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Modifiable reports whether shipping data may still change or the order be cancelled.
func (s OrderStatus) Modifiable() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

type Shipping struct {
	RecipientName  string
	RecipientPhone string
	Address        string
}

// ShippingUpdate carries optional changes; nil fields are left as they are.
type ShippingUpdate struct {
	RecipientName  *string
	RecipientPhone *string
	Address        *string
}

type Order struct {
	ID          int64
	UserID      int64
	OrderNumber string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	FinalAmount decimal.Decimal
	Shipping
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) OwnerID() int64 { return o.UserID }

func (o *Order) ApplyShipping(u ShippingUpdate) {
	if u.RecipientName != nil {
		o.RecipientName = *u.RecipientName
	}
	if u.RecipientPhone != nil {
		o.RecipientPhone = *u.RecipientPhone
	}
	if u.Address != nil {
		o.Address = *u.Address
	}
}

// OrderItem snapshots product name and price at purchase time. ProductID is
// nil once the product has been deleted.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   *int64
	SellerID    int64
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	CreatedAt   time.Time
}

type LineRequest struct {
	ProductID int64
	Quantity  int
}

// ItemsTotal sums the line subtotals.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
