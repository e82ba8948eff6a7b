package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	svc := f.notifications()
	admin := domain.Actor{UserID: 777, Roles: []domain.Role{domain.RoleAdmin}}
	buyer := actorOf(f.buyer)

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		n, err := svc.Send(context.Background(), admin, SendNotificationInput{UserID: f.buyer.ID, Title: title, Content: "hello"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if n.Type != domain.NotificationSystem {
			t.Errorf("expected SYSTEM type, got %s", n.Type)
		}
		ids = append(ids, n.ID)
	}

	if count, _ := svc.UnreadCount(context.Background(), buyer); count != 3 {
		t.Errorf("expected 3 unread, got %d", count)
	}

	read, err := svc.MarkRead(context.Background(), buyer, ids[0])
	if err != nil || !read.Read {
		t.Fatalf("mark read: %v %+v", err, read)
	}
	unread, _ := svc.List(context.Background(), buyer, true, 0, 0)
	if len(unread) != 2 {
		t.Errorf("expected 2 unread, got %d", len(unread))
	}

	_, err = svc.MarkRead(context.Background(), actorOf(f.sellerUser), ids[1])
	assertCode(t, err, domain.ErrForbidden, domain.CodeAccessDenied)
	err = svc.Delete(context.Background(), actorOf(f.sellerUser), ids[1])
	assertCode(t, err, domain.ErrForbidden, domain.CodeAccessDenied)

	if err := svc.Delete(context.Background(), buyer, ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.MarkRead(context.Background(), buyer, ids[1])
	assertCode(t, err, domain.ErrNotFound, domain.CodeNotificationNotFound)

	if err := svc.MarkAllRead(context.Background(), buyer); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count, _ := svc.UnreadCount(context.Background(), buyer); count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}
	if len(f.sink.delivered) != 3 {
		t.Errorf("expected 3 deliveries, got %d", len(f.sink.delivered))
	}
}

func TestSendNotification_Rules(t *testing.T) {
	f := newFixture(t)
	svc := f.notifications()
	admin := domain.Actor{UserID: 777, Roles: []domain.Role{domain.RoleAdmin}}

	_, err := svc.Send(context.Background(), actorOf(f.buyer), SendNotificationInput{UserID: f.buyer.ID, Title: "t", Content: "c"})
	assertCode(t, err, domain.ErrForbidden, domain.CodeAccessDenied)
	_, err = svc.Send(context.Background(), admin, SendNotificationInput{UserID: f.buyer.ID, Title: " "})
	assertCode(t, err, domain.ErrValidation, domain.CodeValidationFailed)
	_, err = svc.Send(context.Background(), admin, SendNotificationInput{UserID: 9999, Title: "t", Content: "c"})
	assertCode(t, err, domain.ErrNotFound, domain.CodeUserNotFound)

	for _, typ := range []domain.NotificationType{"PROMO", "SYSTEM_MAINTENANCE_WINDOW_NOTICE", "system"} {
		_, err = svc.Send(context.Background(), admin, SendNotificationInput{UserID: f.buyer.ID, Type: typ, Title: "t", Content: "c"})
		assertCode(t, err, domain.ErrValidation, domain.CodeValidationFailed)
	}
	if n := countNotifications(t, f.store, f.buyer.ID); n != 0 {
		t.Errorf("rejected sends must not be stored, got %d", n)
	}

	n, err := svc.Send(context.Background(), admin, SendNotificationInput{UserID: f.buyer.ID, Type: domain.NotificationStockAlert, Title: "t", Content: "c"})
	if err != nil || n.Type != domain.NotificationStockAlert {
		t.Errorf("expected STOCK_ALERT send to succeed, got %+v %v", n, err)
	}
}

func TestSendNotification_SinkFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("broker down")
	svc := f.notifications()
	admin := domain.Actor{UserID: 777, Roles: []domain.Role{domain.RoleAdmin}}

	if _, err := svc.Send(context.Background(), admin, SendNotificationInput{UserID: f.buyer.ID, Title: "t", Content: "c"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n := countNotifications(t, f.store, f.buyer.ID); n != 1 {
		t.Errorf("expected stored notification, got %d", n)
	}
}
