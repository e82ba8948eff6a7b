package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type ProductService struct {
	store     port.Store
	publisher port.StockEventPublisher
	logger    *zap.Logger
	now       Clock
}

func NewProductService(store port.Store, publisher port.StockEventPublisher, logger *zap.Logger) *ProductService {
	return &ProductService{store: store, publisher: publisher, logger: logger.Named("product"), now: time.Now}
}

// UpdateStock sets the absolute stock of a product. Only the owning seller or
// an admin may do so. A restock fact is published once the write committed;
// the caller never waits on notification fan-out.
func (s *ProductService) UpdateStock(ctx context.Context, actor domain.Actor, productID int64, stock int) (_ *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.UpdateStock")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int("product.stock", stock))

	if stock < 0 {
		return nil, domain.Validation("stock must not be negative")
	}

	var (
		product *domain.Product
		change  domain.StockChange
	)
	err = s.store.WithinTx(ctx, func(tx port.Repository) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NotFound(domain.CodeProductNotFound, "product %d not found", productID)
		}
		if !actor.HasRole(domain.RoleAdmin) {
			if err := domain.AuthorizeOwner(actor, p, "update stock of"); err != nil {
				return err
			}
		}
		change = domain.StockChange{ProductID: p.ID, PreviousStock: p.Stock, CurrentStock: stock}
		p.Stock = stock
		p.UpdatedAt = s.now()
		if err := tx.SaveProductStock(ctx, *p); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change.PreviousStock != change.CurrentStock {
		s.publisher.Publish(change)
	}
	s.logger.Info("stock updated",
		zap.Int64("product_id", product.ID),
		zap.Int("previous", change.PreviousStock),
		zap.Int("current", change.CurrentStock),
	)
	return product, nil
}
