package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const restockHandleTimeout = 30 * time.Second

// errAlreadyNotified aborts a subscriber's transaction when a concurrent
// fan-out claimed the subscription first.
var errAlreadyNotified = errors.New("subscription already notified")

// RestockResult summarizes one fan-out run.
type RestockResult struct {
	Subscribers int
	Notified    int
	Skipped     int
	Failed      int
}

// RestockNotifier is the in-process, at-most-once queue between stock
// mutations and restock notification fan-out. Publish never blocks; when the
// buffer is full the fact is dropped.
type RestockNotifier struct {
	store         port.Store
	notifications *NotificationService
	logger        *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.StockChange
	wg     sync.WaitGroup
}

func NewRestockNotifier(store port.Store, notifications *NotificationService, logger *zap.Logger, queueSize int) *RestockNotifier {
	return &RestockNotifier{
		store:         store,
		notifications: notifications,
		logger:        logger.Named("restock"),
		queue:         make(chan domain.StockChange, queueSize),
	}
}

func (n *RestockNotifier) Publish(change domain.StockChange) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn("restock notifier closed, dropping stock change", zap.Int64("product_id", change.ProductID))
		return
	}
	select {
	case n.queue <- change:
	default:
		n.logger.Warn("restock queue full, dropping stock change",
			zap.Int64("product_id", change.ProductID),
			zap.Int("previous", change.PreviousStock),
			zap.Int("current", change.CurrentStock),
		)
	}
}

// Start launches workers that drain the queue until Close.
func (n *RestockNotifier) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := range workers {
		n.wg.Add(1)
		go n.workerLoop(ctx, i)
	}
}

// Close stops intake and waits for queued facts to be handled.
func (n *RestockNotifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *RestockNotifier) workerLoop(ctx context.Context, id int) {
	defer n.wg.Done()
	n.logger.Debug("restock worker started", zap.Int("worker_id", id))

	for change := range n.queue {
		// Queued facts are still handled during shutdown.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restockHandleTimeout)
		if _, err := n.HandleStockChange(hctx, change); err != nil {
			n.logger.Error("restock fan-out failed",
				zap.Int("worker_id", id),
				zap.Int64("product_id", change.ProductID),
				zap.Error(err),
			)
		}
		cancel()
	}
	n.logger.Debug("restock worker stopped", zap.Int("worker_id", id))
}

// HandleStockChange notifies every pending subscriber of a product that went
// from out of stock to in stock. Each subscriber is handled in its own
// transaction; one failure does not stop the rest.
func (n *RestockNotifier) HandleStockChange(ctx context.Context, change domain.StockChange) (result RestockResult, err error) {
	if !change.IsRestock() {
		return result, nil
	}

	ctx, span := tracer.Start(ctx, "RestockNotifier.HandleStockChange")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("product.id", change.ProductID))

	product, err := n.store.GetProduct(ctx, change.ProductID)
	if err != nil {
		return result, fmt.Errorf("load product %d: %w", change.ProductID, err)
	}
	if product == nil {
		n.logger.Warn("restocked product no longer exists", zap.Int64("product_id", change.ProductID))
		return result, nil
	}

	subs, err := n.store.ListPendingSubscriptions(ctx, product.ID)
	if err != nil {
		return result, fmt.Errorf("list subscriptions for product %d: %w", product.ID, err)
	}
	result.Subscribers = len(subs)
	if len(subs) == 0 {
		n.logger.Debug("no pending restock subscriptions", zap.Int64("product_id", product.ID))
		return result, nil
	}

	for _, sub := range subs {
		err := n.notifySubscriber(ctx, *product, sub)
		if errors.Is(err, errAlreadyNotified) {
			result.Skipped++
			n.logger.Debug("subscription claimed by another fan-out", zap.Int64("subscription_id", sub.ID))
			continue
		}
		if err != nil {
			result.Failed++
			n.logger.Error("failed to notify restock subscriber",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("user_id", sub.UserID),
				zap.Error(err),
			)
			continue
		}
		result.Notified++
	}

	restockNotifications.Add(ctx, int64(result.Notified), metric.WithAttributes(attribute.String("outcome", "sent")))
	restockNotifications.Add(ctx, int64(result.Failed), metric.WithAttributes(attribute.String("outcome", "failed")))
	n.logger.Info("restock notifications sent",
		zap.Int64("product_id", product.ID),
		zap.Int("subscribers", result.Subscribers),
		zap.Int("notified", result.Notified),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (n *RestockNotifier) notifySubscriber(ctx context.Context, product domain.Product, sub domain.RestockSubscription) error {
	note := n.notifications.build(sub.UserID, domain.NotificationRestock,
		"Back in stock",
		fmt.Sprintf("'%s' is back in stock. Order now before it sells out again!", product.Name),
	)
	err := n.store.WithinTx(ctx, func(tx port.Repository) error {
		claimed, err := tx.MarkSubscriptionNotified(ctx, sub.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyNotified
		}
		return tx.CreateNotification(ctx, &note)
	})
	if err != nil {
		return err
	}
	n.notifications.deliver(ctx, note)
	return nil
}
