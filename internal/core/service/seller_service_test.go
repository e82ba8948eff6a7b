package service

import (
	"context"
	"testing"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestSellerRegistration(t *testing.T) {
	f := newFixture(t)
	svc := NewSellerService(f.store, f.logger)
	actor := actorOf(f.buyer)

	seller, err := svc.Register(context.Background(), actor, "  Buyer Goods ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if seller.BusinessName != "Buyer Goods" || seller.UserID != f.buyer.ID {
		t.Errorf("unexpected seller: %+v", seller)
	}
	if u := mustUser(t, f.store, f.buyer.ID); !u.HasRole(domain.RoleSeller) {
		t.Errorf("expected SELLER role, got %v", u.Roles)
	}

	_, err = svc.Register(context.Background(), actor, "Again")
	assertCode(t, err, domain.ErrConflict, domain.CodeDuplicateSeller)

	if err := svc.Unregister(context.Background(), actor); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if u := mustUser(t, f.store, f.buyer.ID); u.HasRole(domain.RoleSeller) {
		t.Errorf("expected SELLER role removed, got %v", u.Roles)
	}
	if s, _ := f.store.GetSellerByUser(context.Background(), f.buyer.ID); s != nil {
		t.Errorf("expected seller row removed, got %+v", s)
	}

	err = svc.Unregister(context.Background(), actor)
	assertCode(t, err, domain.ErrNotFound, domain.CodeSellerNotFound)
	_, err = svc.Register(context.Background(), actor, "")
	assertCode(t, err, domain.ErrValidation, domain.CodeValidationFailed)
}
