package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// ErrDuplicateOrderNumber is returned by CreateOrder when the order number
// collides with an existing order.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

// ErrDuplicateSubscription is returned by CreateSubscription when the
// (product, user) pair already has a subscription.
var ErrDuplicateSubscription = errors.New("duplicate restock subscription")

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	UpdateUserRoles(ctx context.Context, id int64, roles []domain.Role) error
	AddPurchaseAmount(ctx context.Context, userID int64, delta decimal.Decimal) error
}

type SellerRepository interface {
	ListSellers(ctx context.Context) ([]domain.Seller, error)
	GetSellerByUser(ctx context.Context, userID int64) (*domain.Seller, error)
	CreateSeller(ctx context.Context, seller *domain.Seller) error
	DeleteSeller(ctx context.Context, id int64) error
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// LockProduct reads the product and holds a row lock until the
	// surrounding transaction ends.
	LockProduct(ctx context.Context, id int64) (*domain.Product, error)
	SaveProductStock(ctx context.Context, p domain.Product) error
	ListActiveInStockProducts(ctx context.Context) ([]domain.Product, error)
}

type OrderRepository interface {
	// CreateOrder inserts the order and its items and fills in their IDs.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	LockOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) error
}

// SalesRepository answers the bounded, indexed aggregations used by the
// stock-analysis jobs.
type SalesRepository interface {
	SellerSalesSince(ctx context.Context, sellerID int64, since time.Time) ([]domain.ProductSales, error)
	UnitsSoldSince(ctx context.Context, productID int64, since time.Time) (int64, error)
}

type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *domain.RestockSubscription) error
	GetSubscription(ctx context.Context, id int64) (*domain.RestockSubscription, error)
	FindSubscription(ctx context.Context, productID, userID int64) (*domain.RestockSubscription, error)
	ListPendingSubscriptions(ctx context.Context, productID int64) ([]domain.RestockSubscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID int64) ([]domain.RestockSubscription, error)
	ListSubscriptionsByProduct(ctx context.Context, productID int64) ([]domain.RestockSubscription, error)
	// MarkSubscriptionNotified flips a pending subscription to notified and
	// reports false when it was already notified or no longer exists.
	MarkSubscriptionNotified(ctx context.Context, id int64) (bool, error)
	DeleteSubscription(ctx context.Context, id int64) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int64, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, id int64) error
}

type Repository interface {
	UserRepository
	SellerRepository
	ProductRepository
	OrderRepository
	SalesRepository
	SubscriptionRepository
	NotificationRepository
}

// Store is a Repository that can also run a function atomically. Either every
// write made through tx lands or none does.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}
