package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type SendNotificationInput struct {
	UserID  int64
	Type    domain.NotificationType
	Title   string
	Content string
}

// NotificationService owns the user-facing notification inbox and forwards
// every stored notification to the configured sink.
type NotificationService struct {
	store  port.Store
	sink   port.NotificationSink
	logger *zap.Logger
	now    Clock
}

func NewNotificationService(store port.Store, sink port.NotificationSink, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, sink: sink, logger: logger.Named("notification"), now: time.Now}
}

func (s *NotificationService) List(ctx context.Context, actor domain.Actor, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	limit, offset = normalizePage(limit, offset)
	return s.store.ListNotifications(ctx, actor.UserID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor domain.Actor) (int64, error) {
	return s.store.CountUnreadNotifications(ctx, actor.UserID)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id int64) (*domain.Notification, error) {
	n, err := s.owned(ctx, actor, id, "read")
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) error {
	return s.store.MarkAllNotificationsRead(ctx, actor.UserID)
}

func (s *NotificationService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if _, err := s.owned(ctx, actor, id, "delete"); err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, id)
}

// Send stores an operator-authored notification for a user.
func (s *NotificationService) Send(ctx context.Context, actor domain.Actor, in SendNotificationInput) (*domain.Notification, error) {
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, domain.Forbidden("only administrators can send notifications")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, domain.Validation("title and content are required")
	}
	if in.Type == "" {
		in.Type = domain.NotificationSystem
	}
	if !in.Type.Valid() {
		return nil, domain.Validation("unknown notification type %q", in.Type)
	}
	user, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(domain.CodeUserNotFound, "user %d not found", in.UserID)
	}

	n := s.build(in.UserID, in.Type, in.Title, in.Content)
	if err := s.store.CreateNotification(ctx, &n); err != nil {
		return nil, err
	}
	s.deliver(ctx, n)
	return &n, nil
}

func (s *NotificationService) owned(ctx context.Context, actor domain.Actor, id int64, action string) (*domain.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.NotFound(domain.CodeNotificationNotFound, "notification %d not found", id)
	}
	if err := domain.AuthorizeOwner(actor, n, action); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) build(userID int64, typ domain.NotificationType, title, content string) domain.Notification {
	return domain.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Content:   content,
		CreatedAt: s.now(),
	}
}

// deliver forwards a stored notification to the sink. Failures are logged
// only; the stored record is the source of truth.
func (s *NotificationService) deliver(ctx context.Context, n domain.Notification) {
	if err := s.sink.Deliver(ctx, n); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.Int64("notification_id", n.ID),
			zap.Int64("user_id", n.UserID),
			zap.Error(err),
		)
	}
}
