package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusSoldOut  ProductStatus = "SOLD_OUT"
)

type Product struct {
	ID           int64
	SellerID     int64
	SellerUserID int64
	Name         string
	Price        decimal.Decimal
	Stock        int
	Status       ProductStatus
	SalesCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Product) OwnerID() int64 { return p.SellerUserID }

// Reserve takes quantity units out of stock for a confirmed order line.
func (p *Product) Reserve(quantity int) error {
	if p.Stock < quantity {
		return InsufficientStock(*p, quantity)
	}
	p.Stock -= quantity
	p.SalesCount += quantity
	return nil
}

// Release is the exact inverse of Reserve. It never clamps, so a release
// without a matching reserve shows up as a negative sales count.
func (p *Product) Release(quantity int) {
	p.Stock += quantity
	p.SalesCount -= quantity
}

// StockChange is the fact emitted after any committed stock mutation.
type StockChange struct {
	ProductID     int64
	PreviousStock int
	CurrentStock  int
}

// IsRestock reports a zero-crossing: exactly 0 before, positive after.
func (c StockChange) IsRestock() bool {
	return c.PreviousStock <= 0 && c.CurrentStock > 0
}
