package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type SellerService struct {
	store  port.Store
	logger *zap.Logger
	now    Clock
}

func NewSellerService(store port.Store, logger *zap.Logger) *SellerService {
	return &SellerService{store: store, logger: logger.Named("seller"), now: time.Now}
}

// Register turns the caller into a seller. The role and the seller row are
// written together.
func (s *SellerService) Register(ctx context.Context, actor domain.Actor, businessName string) (*domain.Seller, error) {
	businessName = strings.TrimSpace(businessName)
	if businessName == "" {
		return nil, domain.Validation("business name is required")
	}

	var seller *domain.Seller
	err := s.store.WithinTx(ctx, func(tx port.Repository) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.NotFound(domain.CodeUserNotFound, "user %d not found", actor.UserID)
		}
		if err := user.PromoteToSeller(); err != nil {
			return err
		}
		existing, err := tx.GetSellerByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflict(domain.CodeDuplicateSeller, "user %d is already registered as a seller", user.ID)
		}
		created := &domain.Seller{UserID: user.ID, BusinessName: businessName, CreatedAt: s.now()}
		if err := tx.CreateSeller(ctx, created); err != nil {
			return err
		}
		if err := tx.UpdateUserRoles(ctx, user.ID, user.Roles); err != nil {
			return err
		}
		seller = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("seller registered", zap.Int64("seller_id", seller.ID), zap.Int64("user_id", seller.UserID))
	return seller, nil
}

func (s *SellerService) Unregister(ctx context.Context, actor domain.Actor) error {
	err := s.store.WithinTx(ctx, func(tx port.Repository) error {
		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.NotFound(domain.CodeUserNotFound, "user %d not found", actor.UserID)
		}
		if err := user.DemoteFromSeller(); err != nil {
			return err
		}
		seller, err := tx.GetSellerByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if seller == nil {
			return domain.NotFound(domain.CodeSellerNotFound, "user %d is not a seller", user.ID)
		}
		if err := tx.DeleteSeller(ctx, seller.ID); err != nil {
			return err
		}
		return tx.UpdateUserRoles(ctx, user.ID, user.Roles)
	})
	if err != nil {
		return err
	}
	s.logger.Info("seller unregistered", zap.Int64("user_id", actor.UserID))
	return nil
}
