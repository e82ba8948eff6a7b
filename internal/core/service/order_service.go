package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	idempotencyKeyPrefix   = "order:idempotency:"
	idempotencyKeyTTL      = 24 * time.Hour
	maxOrderNumberAttempts = 3
)

// DiscountPolicy turns the gross order total into the amount charged.
type DiscountPolicy interface {
	Apply(total decimal.Decimal, couponID *int64) decimal.Decimal
}

// NoDiscount charges the gross total.
type NoDiscount struct{}

func (NoDiscount) Apply(total decimal.Decimal, _ *int64) decimal.Decimal { return total }

type CreateOrderInput struct {
	Items    []domain.LineRequest
	Shipping domain.Shipping
	CouponID *int64
	// IdempotencyKey, when set, rejects a replay of the same request.
	IdempotencyKey string
}

type OrderService struct {
	store          port.Store
	cache          port.CacheRepository
	publisher      port.StockEventPublisher
	discount       DiscountPolicy
	logger         *zap.Logger
	now            Clock
	newOrderNumber func(time.Time) string
}

type OrderOption func(*OrderService)

func WithOrderClock(now Clock) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func WithOrderNumberGenerator(gen func(time.Time) string) OrderOption {
	return func(s *OrderService) { s.newOrderNumber = gen }
}

func WithDiscountPolicy(p DiscountPolicy) OrderOption {
	return func(s *OrderService) { s.discount = p }
}

func NewOrderService(store port.Store, cache port.CacheRepository, publisher port.StockEventPublisher, logger *zap.Logger, opts ...OrderOption) *OrderService {
	s := &OrderService{
		store:          store,
		cache:          cache,
		publisher:      publisher,
		discount:       NoDiscount{},
		logger:         logger.Named("order"),
		now:            time.Now,
		newOrderNumber: GenerateOrderNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateOrderNumber returns ORD-<yyyyMMddHHmmss>-<8 uppercase hex chars>.
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.Format("20060102150405") + "-" + suffix
}

func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("user.id", actor.UserID), attribute.Int("order.lines", len(in.Items)))

	if err := validateLines(in.Items); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		key := fmt.Sprintf("%s%d:%s", idempotencyKeyPrefix, actor.UserID, in.IdempotencyKey)
		ok, cacheErr := s.cache.SetIfAbsent(ctx, key, "1", idempotencyKeyTTL)
		switch {
		case cacheErr != nil:
			s.logger.Warn("idempotency check unavailable", zap.String("key", key), zap.Error(cacheErr))
		case !ok:
			return nil, domain.Conflict(domain.CodeDuplicateRequest, "duplicate request for idempotency key %q", in.IdempotencyKey)
		default:
			defer func() {
				if err != nil {
					if delErr := s.cache.Delete(context.WithoutCancel(ctx), key); delErr != nil {
						s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(delErr))
					}
				}
			}()
		}
	}

	var (
		order   *domain.Order
		changes []domain.StockChange
	)
	err = s.store.WithinTx(ctx, func(tx port.Repository) error {
		changes = nil

		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.NotFound(domain.CodeUserNotFound, "user %d not found", actor.UserID)
		}

		ids := lineProductIDs(in.Items)
		products, err := lockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		now := s.now()
		previous := make(map[int64]int, len(products))
		for id, p := range products {
			previous[id] = p.Stock
		}

		items := make([]domain.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			p, ok := products[line.ProductID]
			if !ok {
				return domain.NotFound(domain.CodeProductNotFound, "product %d not found", line.ProductID)
			}
			if err := p.Reserve(line.Quantity); err != nil {
				return err
			}
			productID := p.ID
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, domain.OrderItem{
				ProductID:   &productID,
				SellerID:    p.SellerID,
				ProductName: p.Name,
				Price:       p.Price,
				Quantity:    line.Quantity,
				Subtotal:    subtotal,
				CreatedAt:   now,
			})
		}

		for _, id := range ids {
			p := products[id]
			if p == nil {
				continue
			}
			p.UpdatedAt = now
			if err := tx.SaveProductStock(ctx, *p); err != nil {
				return err
			}
			changes = append(changes, domain.StockChange{ProductID: id, PreviousStock: previous[id], CurrentStock: p.Stock})
		}

		total := domain.ItemsTotal(items)
		o := &domain.Order{
			UserID:      user.ID,
			Status:      domain.OrderStatusPending,
			TotalAmount: total,
			FinalAmount: s.discount.Apply(total, in.CouponID),
			Shipping:    in.Shipping,
			Items:       items,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.insertOrder(ctx, tx, o, now); err != nil {
			return err
		}
		if err := tx.AddPurchaseAmount(ctx, user.ID, total); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(changes)
	ordersCreated.Add(ctx, 1)
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.String("total", order.TotalAmount.String()),
	)
	return order, nil
}

func (s *OrderService) insertOrder(ctx context.Context, tx port.Repository, o *domain.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		o.OrderNumber = s.newOrderNumber(now)
		err := tx.CreateOrder(ctx, o)
		if err == nil {
			return nil
		}
		if errors.Is(err, port.ErrDuplicateOrderNumber) && attempt < maxOrderNumberAttempts {
			s.logger.Warn("order number collision, regenerating", zap.String("order_number", o.OrderNumber), zap.Int("attempt", attempt))
			continue
		}
		return fmt.Errorf("insert order: %w", err)
	}
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID int64) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer func() { endSpan(span, err) }()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NotFound(domain.CodeOrderNotFound, "order %d not found", orderID)
	}
	if err := domain.AuthorizeOwner(actor, order, "view"); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Order, error) {
	limit, offset = normalizePage(limit, offset)
	return s.store.ListOrdersByUser(ctx, actor.UserID, limit, offset)
}

func (s *OrderService) UpdateOrder(ctx context.Context, actor domain.Actor, orderID int64, update domain.ShippingUpdate) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrder")
	defer func() { endSpan(span, err) }()

	var order *domain.Order
	err = s.store.WithinTx(ctx, func(tx port.Repository) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFound(domain.CodeOrderNotFound, "order %d not found", orderID)
		}
		if err := domain.AuthorizeOwner(actor, o, "modify"); err != nil {
			return err
		}
		if !o.Status.Modifiable() {
			return domain.Unprocessable(domain.CodeInvalidOrderStatus, "order in status %s can no longer be modified", o.Status)
		}
		o.ApplyShipping(update)
		o.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, *o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order updated", zap.Int64("order_id", order.ID))
	return order, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, orderID int64) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder")
	defer func() { endSpan(span, err) }()

	var (
		order   *domain.Order
		changes []domain.StockChange
	)
	err = s.store.WithinTx(ctx, func(tx port.Repository) error {
		changes = nil

		user, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.NotFound(domain.CodeUserNotFound, "user %d not found", actor.UserID)
		}

		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFound(domain.CodeOrderNotFound, "order %d not found", orderID)
		}
		if err := domain.AuthorizeOwner(actor, o, "cancel"); err != nil {
			return err
		}
		if !o.Status.Modifiable() {
			return domain.Unprocessable(domain.CodeInvalidOrderStatus, "order in status %s can no longer be cancelled", o.Status)
		}

		var ids []int64
		for _, it := range o.Items {
			if it.ProductID != nil {
				ids = append(ids, *it.ProductID)
			}
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)
		products, err := lockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}
		previous := make(map[int64]int, len(products))
		for id, p := range products {
			previous[id] = p.Stock
		}
		for _, it := range o.Items {
			if it.ProductID == nil {
				continue
			}
			// Deleted products have nothing to restore.
			if p, ok := products[*it.ProductID]; ok {
				p.Release(it.Quantity)
			}
		}

		now := s.now()
		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				continue
			}
			p.UpdatedAt = now
			if err := tx.SaveProductStock(ctx, *p); err != nil {
				return err
			}
			changes = append(changes, domain.StockChange{ProductID: id, PreviousStock: previous[id], CurrentStock: p.Stock})
		}

		if err := tx.AddPurchaseAmount(ctx, o.UserID, o.TotalAmount.Neg()); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, *o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(changes)
	ordersCancelled.Add(ctx, 1)
	s.logger.Info("order cancelled", zap.Int64("order_id", order.ID), zap.Int("restored_products", len(changes)))
	return order, nil
}

// AdvanceStatus moves an order along PENDING -> PAID -> SHIPPED -> DELIVERED.
// Cancellation goes through CancelOrder so stock and totals are restored.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.AdvanceStatus")
	defer func() { endSpan(span, err) }()

	if !next.Valid() {
		return nil, domain.Validation("unknown order status %q", next)
	}
	if next == domain.OrderStatusCancelled {
		return nil, domain.Unprocessable(domain.CodeInvalidOrderStatus, "use order cancellation to cancel an order")
	}

	var order *domain.Order
	err = s.store.WithinTx(ctx, func(tx port.Repository) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFound(domain.CodeOrderNotFound, "order %d not found", orderID)
		}
		if !o.Status.CanTransitionTo(next) {
			return domain.Unprocessable(domain.CodeInvalidOrderStatus, "cannot change order status from %s to %s", o.Status, next)
		}
		o.Status = next
		o.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, *o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed", zap.Int64("order_id", order.ID), zap.String("status", string(order.Status)))
	return order, nil
}

func (s *OrderService) publish(changes []domain.StockChange) {
	for _, c := range changes {
		if c.PreviousStock != c.CurrentStock {
			s.publisher.Publish(c)
		}
	}
}

func validateLines(lines []domain.LineRequest) error {
	if len(lines) == 0 {
		return domain.Validation("order must contain at least one item")
	}
	for i, l := range lines {
		if l.ProductID <= 0 {
			return domain.Validation("items[%d]: product id is required", i)
		}
		if l.Quantity < 1 {
			return domain.Validation("items[%d]: quantity must be at least 1", i)
		}
	}
	return nil
}

// lineProductIDs returns the distinct product ids in ascending order, the
// order in which row locks are taken.
func lineProductIDs(lines []domain.LineRequest) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// lockProducts locks each product in ids order. Missing products are absent
// from the result.
func lockProducts(ctx context.Context, tx port.Repository, ids []int64) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			products[id] = p
		}
	}
	return products, nil
}
