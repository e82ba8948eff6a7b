package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// StockEventPublisher receives stock facts after the mutating transaction
// committed. Publish must not block the caller.
type StockEventPublisher interface {
	Publish(change domain.StockChange)
}

// NotificationSink forwards persisted notifications to an external delivery
// channel.
type NotificationSink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}
