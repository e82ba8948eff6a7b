package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// SubscriptionService manages restock subscriptions. A subscription that has
// already been notified is replaced by a fresh one on re-subscribe.
type SubscriptionService struct {
	store  port.Store
	logger *zap.Logger
	now    Clock
}

func NewSubscriptionService(store port.Store, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{store: store, logger: logger.Named("subscription"), now: time.Now}
}

func (s *SubscriptionService) Subscribe(ctx context.Context, actor domain.Actor, productID int64) (*domain.RestockSubscription, error) {
	var sub *domain.RestockSubscription
	err := s.store.WithinTx(ctx, func(tx port.Repository) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.NotFound(domain.CodeUserNotFound, "user %d not found", actor.UserID)
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.NotFound(domain.CodeProductNotFound, "product %d not found", productID)
		}

		existing, err := tx.FindSubscription(ctx, productID, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.Notified {
				return duplicateSubscription(productID)
			}
			if err := tx.DeleteSubscription(ctx, existing.ID); err != nil {
				return err
			}
		}

		created := &domain.RestockSubscription{ProductID: productID, UserID: user.ID, CreatedAt: s.now()}
		if err := tx.CreateSubscription(ctx, created); err != nil {
			if errors.Is(err, port.ErrDuplicateSubscription) {
				return duplicateSubscription(productID)
			}
			return err
		}
		sub = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("restock subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("product_id", sub.ProductID),
		zap.Int64("user_id", sub.UserID),
	)
	return sub, nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, actor domain.Actor, subscriptionID int64) error {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.NotFound(domain.CodeSubscriptionNotFound, "subscription %d not found", subscriptionID)
	}
	if err := domain.AuthorizeOwner(actor, sub, "cancel"); err != nil {
		return err
	}
	return s.store.DeleteSubscription(ctx, subscriptionID)
}

func (s *SubscriptionService) ListMine(ctx context.Context, actor domain.Actor) ([]domain.RestockSubscription, error) {
	return s.store.ListSubscriptionsByUser(ctx, actor.UserID)
}

// ListForProduct is available to the owning seller and to admins.
func (s *SubscriptionService) ListForProduct(ctx context.Context, actor domain.Actor, productID int64) ([]domain.RestockSubscription, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.NotFound(domain.CodeProductNotFound, "product %d not found", productID)
	}
	if !actor.HasRole(domain.RoleAdmin) {
		if err := domain.AuthorizeOwner(actor, product, "view subscriptions of"); err != nil {
			return nil, err
		}
	}
	return s.store.ListSubscriptionsByProduct(ctx, productID)
}

func duplicateSubscription(productID int64) error {
	return domain.Conflict(domain.CodeDuplicateSubscription, "already subscribed to restock notifications for product %d", productID)
}
