package service

import (
	"context"
	"testing"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestUpdateStock(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct("Lamp", "30.00", 0)
	svc := NewProductService(f.store, f.publisher, f.logger)

	updated, err := svc.UpdateStock(context.Background(), actorOf(f.sellerUser), p.ID, 12)
	if err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if updated.Stock != 12 || mustProduct(t, f.store, p.ID).Stock != 12 {
		t.Errorf("expected stock 12, got %d", updated.Stock)
	}
	changes := f.publisher.published()
	if len(changes) != 1 || !changes[0].IsRestock() {
		t.Errorf("expected one restock fact, got %+v", changes)
	}

	// Unchanged stock publishes nothing.
	if _, err := svc.UpdateStock(context.Background(), actorOf(f.sellerUser), p.ID, 12); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if n := len(f.publisher.published()); n != 1 {
		t.Errorf("expected 1 published change, got %d", n)
	}
}

func TestUpdateStock_Authorization(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct("Lamp", "30.00", 1)
	svc := NewProductService(f.store, f.publisher, f.logger)

	_, err := svc.UpdateStock(context.Background(), actorOf(f.buyer), p.ID, 50)
	assertCode(t, err, domain.ErrForbidden, domain.CodeAccessDenied)
	if got := mustProduct(t, f.store, p.ID); got.Stock != 1 {
		t.Errorf("expected stock 1, got %d", got.Stock)
	}

	admin := domain.Actor{UserID: 777, Roles: []domain.Role{domain.RoleAdmin}}
	if _, err := svc.UpdateStock(context.Background(), admin, p.ID, 50); err != nil {
		t.Errorf("admin update: %v", err)
	}

	_, err = svc.UpdateStock(context.Background(), admin, p.ID, -1)
	assertCode(t, err, domain.ErrValidation, domain.CodeValidationFailed)
	_, err = svc.UpdateStock(context.Background(), admin, 9999, 1)
	assertCode(t, err, domain.ErrNotFound, domain.CodeProductNotFound)
}
