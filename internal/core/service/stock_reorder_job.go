package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	ReorderAlertKeyPrefix = "reorder:alert:"
	ReorderAlertTTL       = 24 * time.Hour
	// CriticalDaysOfStock is the days-until-stockout at or below which an
	// alert is raised.
	CriticalDaysOfStock = 3.0
)

func ReorderAlertKey(productID int64) string {
	return ReorderAlertKeyPrefix + strconv.FormatInt(productID, 10)
}

type ReorderRunSummary struct {
	Checked int
	Alerts  int
	Skipped int
	Failed  int
}

// StockReorderJob alerts sellers whose products will run out within
// CriticalDaysOfStock at the recent sales pace. An alert for a product is
// suppressed for ReorderAlertTTL after it was raised.
type StockReorderJob struct {
	store         port.Repository
	cache         port.CacheRepository
	notifications *NotificationService
	logger        *zap.Logger
	now           Clock
}

func NewStockReorderJob(store port.Repository, cache port.CacheRepository, notifications *NotificationService, logger *zap.Logger, now Clock) *StockReorderJob {
	if now == nil {
		now = time.Now
	}
	return &StockReorderJob{store: store, cache: cache, notifications: notifications, logger: logger.Named("stock_reorder_job"), now: now}
}

func (j *StockReorderJob) Name() string { return "stock-reorder" }

func (j *StockReorderJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

func (j *StockReorderJob) RunOnce(ctx context.Context) (summary ReorderRunSummary, err error) {
	ctx, span := tracer.Start(ctx, "StockReorderJob.RunOnce")
	defer func() { endSpan(span, err) }()
	started := time.Now()

	products, err := j.store.ListActiveInStockProducts(ctx)
	if err != nil {
		return summary, fmt.Errorf("list products: %w", err)
	}
	since := j.now().Add(-SalesWindow)

	for _, p := range products {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++
		alerted, err := j.check(ctx, p, since)
		switch {
		case err != nil:
			summary.Failed++
			j.logger.Error("reorder check failed", zap.Int64("product_id", p.ID), zap.Error(err))
		case alerted:
			summary.Alerts++
		default:
			summary.Skipped++
		}
	}

	j.logger.Info("stock reorder run finished",
		zap.Int("checked", summary.Checked),
		zap.Int("alerts", summary.Alerts),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(started)),
	)
	return summary, nil
}

func (j *StockReorderJob) check(ctx context.Context, p domain.Product, since time.Time) (bool, error) {
	units, err := j.store.UnitsSoldSince(ctx, p.ID, since)
	if err != nil {
		return false, err
	}
	if units <= 0 {
		return false, nil
	}
	dailyAverage := float64(units) / (SalesWindow.Hours() / 24)
	daysLeft := float64(p.Stock) / dailyAverage
	if daysLeft > CriticalDaysOfStock {
		return false, nil
	}

	key := ReorderAlertKey(p.ID)
	suppressed, err := j.cache.HasKey(ctx, key)
	if err != nil {
		j.logger.Warn("reorder suppression lookup failed", zap.String("key", key), zap.Error(err))
	}
	if suppressed {
		j.logger.Debug("reorder alert suppressed", zap.Int64("product_id", p.ID))
		return false, nil
	}
	if p.SellerUserID == 0 {
		j.logger.Warn("product has no seller to alert", zap.Int64("product_id", p.ID))
		return false, nil
	}

	note := j.notifications.build(p.SellerUserID, domain.NotificationStockAlert,
		"Low stock alert",
		fmt.Sprintf("Stock for '%s' is running low. Current stock: %d, daily average sales: %.1f, estimated stockout in %.1f days.",
			p.Name, p.Stock, dailyAverage, daysLeft),
	)
	if err := j.store.CreateNotification(ctx, &note); err != nil {
		return false, err
	}
	j.notifications.deliver(ctx, note)

	if err := j.cache.Set(ctx, key, "1", ReorderAlertTTL); err != nil {
		j.logger.Warn("failed to set reorder suppression flag", zap.String("key", key), zap.Error(err))
	}
	reorderAlerts.Add(ctx, 1)
	j.logger.Info("reorder alert raised",
		zap.Int64("product_id", p.ID),
		zap.Int64("seller_user_id", p.SellerUserID),
		zap.Float64("days_left", daysLeft),
	)
	return true, nil
}
