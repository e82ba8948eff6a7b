package rpc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items          []LineItem `json:"items"`
	RecipientName  string     `json:"recipient_name"`
	RecipientPhone string     `json:"recipient_phone"`
	Address        string     `json:"address"`
	CouponID       *int64     `json:"coupon_id,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type UpdateOrderRequest struct {
	OrderID        int64   `json:"order_id"`
	RecipientName  *string `json:"recipient_name,omitempty"`
	RecipientPhone *string `json:"recipient_phone,omitempty"`
	Address        *string `json:"address,omitempty"`
}

type CancelOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	ProductID   *int64          `json:"product_id"`
	SellerID    int64           `json:"seller_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	RecipientName  string          `json:"recipient_name"`
	RecipientPhone string          `json:"recipient_phone"`
	Address        string          `json:"address"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (r *CreateOrderRequest) Lines() []domain.LineRequest {
	lines := make([]domain.LineRequest, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func (r *CreateOrderRequest) Shipping() domain.Shipping {
	return domain.Shipping{RecipientName: r.RecipientName, RecipientPhone: r.RecipientPhone, Address: r.Address}
}

func (r *UpdateOrderRequest) ShippingUpdate() domain.ShippingUpdate {
	return domain.ShippingUpdate{RecipientName: r.RecipientName, RecipientPhone: r.RecipientPhone, Address: r.Address}
}

func OrderFromDomain(o *domain.Order) *Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			ID:          it.ID,
			ProductID:   it.ProductID,
			SellerID:    it.SellerID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return &Order{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		FinalAmount:    o.FinalAmount,
		RecipientName:  o.RecipientName,
		RecipientPhone: o.RecipientPhone,
		Address:        o.Address,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
