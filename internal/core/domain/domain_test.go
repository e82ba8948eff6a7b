package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
	if OrderStatus("REFUNDED").Valid() {
		t.Error("unknown status reported valid")
	}
	if !OrderStatusPaid.Modifiable() || OrderStatusShipped.Modifiable() {
		t.Error("only PENDING and PAID orders are modifiable")
	}
}

func TestReserveAndRelease(t *testing.T) {
	p := Product{ID: 1, Name: "Lamp", Stock: 3, SalesCount: 10}

	if err := p.Reserve(2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if p.Stock != 1 || p.SalesCount != 12 {
		t.Errorf("after reserve: stock=%d sales=%d", p.Stock, p.SalesCount)
	}

	err := p.Reserve(5)
	var derr *Error
	if !errors.As(err, &derr) || derr.Code != CodeInsufficientStock || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected insufficient stock conflict, got %v", err)
	}
	if derr.Detail["requested"] != 5 || derr.Detail["available"] != 1 {
		t.Errorf("unexpected detail: %v", derr.Detail)
	}
	if p.Stock != 1 {
		t.Errorf("failed reserve changed stock to %d", p.Stock)
	}

	p.Release(2)
	if p.Stock != 3 || p.SalesCount != 10 {
		t.Errorf("after release: stock=%d sales=%d", p.Stock, p.SalesCount)
	}

	before := p
	if err := p.Reserve(3); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p.Release(3)
	if p != before {
		t.Errorf("reserve then release not an exact inverse: %+v vs %+v", p, before)
	}

	p.Release(20)
	if p.Stock != 23 || p.SalesCount != -10 {
		t.Errorf("unmatched release must not be clamped: stock=%d sales=%d", p.Stock, p.SalesCount)
	}
}

func TestStockChangeIsRestock(t *testing.T) {
	tests := []struct {
		prev, cur int
		want      bool
	}{
		{0, 5, true},
		{0, 0, false},
		{2, 5, false},
		{5, 0, false},
	}
	for _, tt := range tests {
		if got := (StockChange{PreviousStock: tt.prev, CurrentStock: tt.cur}).IsRestock(); got != tt.want {
			t.Errorf("%d -> %d: expected %v", tt.prev, tt.cur, tt.want)
		}
	}
}

func TestRankingEncoding(t *testing.T) {
	entries := []ProductSales{
		{ProductID: 7, UnitsSold: 12, Revenue: decimal.RequireFromString("120.5")},
		{ProductID: 3, UnitsSold: 4, Revenue: decimal.RequireFromString("9.99")},
	}
	encoded := EncodeRanking(entries)
	if encoded != "7:12:120.50|3:4:9.99" {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeRanking(encoded)
	if err != nil {
		t.Fatalf("DecodeRanking: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ProductID != 7 || !decoded[0].Revenue.Equal(entries[0].Revenue) {
		t.Errorf("unexpected decode: %+v", decoded)
	}

	if got, err := DecodeRanking(""); err != nil || got != nil {
		t.Errorf("empty ranking: %v %v", got, err)
	}
	for _, bad := range []string{"7:12", "x:1:2", "1:y:2", "1:2:z"} {
		if _, err := DecodeRanking(bad); err == nil {
			t.Errorf("expected error decoding %q", bad)
		}
	}
}

func TestSellerRoleTransitions(t *testing.T) {
	u := User{ID: 1, Roles: []Role{RoleUser}}
	if err := u.DemoteFromSeller(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found demoting a non-seller, got %v", err)
	}
	if err := u.PromoteToSeller(); err != nil {
		t.Fatalf("PromoteToSeller: %v", err)
	}
	if err := u.PromoteToSeller(); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict promoting twice, got %v", err)
	}
	if err := u.DemoteFromSeller(); err != nil || u.HasRole(RoleSeller) || !u.HasRole(RoleUser) {
		t.Errorf("demote: err=%v roles=%v", err, u.Roles)
	}
}

func TestAuthorizeOwner(t *testing.T) {
	order := &Order{UserID: 4}
	if err := AuthorizeOwner(Actor{UserID: 4}, order, "view"); err != nil {
		t.Errorf("owner rejected: %v", err)
	}
	err := AuthorizeOwner(Actor{UserID: 5, Roles: []Role{RoleAdmin}}, order, "view")
	var derr *Error
	if !errors.As(err, &derr) || derr.Code != CodeAccessDenied {
		t.Errorf("expected ACCESS_DENIED, got %v", err)
	}
}

func TestApplyShippingKeepsUnsetFields(t *testing.T) {
	o := Order{Shipping: Shipping{RecipientName: "Ann", RecipientPhone: "123", Address: "1 Main St"}}
	addr := "2 Side St"
	o.ApplyShipping(ShippingUpdate{Address: &addr})
	if o.Address != addr || o.RecipientName != "Ann" || o.RecipientPhone != "123" {
		t.Errorf("unexpected shipping: %+v", o.Shipping)
	}
}
