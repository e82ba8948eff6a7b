package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// Mock StockEventPublisher
type recordingPublisher struct {
	mu      sync.Mutex
	changes []domain.StockChange
}

func (p *recordingPublisher) Publish(c domain.StockChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) published() []domain.StockChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockChange(nil), p.changes...)
}

// Mock NotificationSink
type recordingSink struct {
	mu        sync.Mutex
	delivered []domain.Notification
	err       error
}

func (s *recordingSink) Deliver(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}

// failingNotificationStore fails CreateNotification for one user inside
// transactions.
type failingNotificationStore struct {
	*storage.MemoryAdapter
	failFor int64
}

func (f *failingNotificationStore) WithinTx(ctx context.Context, fn func(tx port.Repository) error) error {
	return f.MemoryAdapter.WithinTx(ctx, func(tx port.Repository) error {
		return fn(&failingNotificationRepo{Repository: tx, failFor: f.failFor})
	})
}

type failingNotificationRepo struct {
	port.Repository
	failFor int64
}

func (r *failingNotificationRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.UserID == r.failFor {
		return errors.New("disk full")
	}
	return r.Repository.CreateNotification(ctx, n)
}

// failingCache fails every operation.
type failingCache struct{}

var errCacheDown = errors.New("cache unavailable")

func (failingCache) Set(context.Context, string, string, time.Duration) error { return errCacheDown }
func (failingCache) Get(context.Context, string) (string, bool, error)       { return "", false, errCacheDown }
func (failingCache) HasKey(context.Context, string) (bool, error)            { return false, errCacheDown }
func (failingCache) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (failingCache) Delete(context.Context, string) error { return errCacheDown }

type fixture struct {
	store      *storage.MemoryAdapter
	cache      *storage.MemoryCache
	publisher  *recordingPublisher
	sink       *recordingSink
	logger     *zap.Logger
	buyer      domain.User
	sellerUser domain.User
	seller     domain.Seller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryAdapter()
	buyer := store.AddUser(domain.User{Email: "buyer@example.com", Name: "Buyer", Roles: []domain.Role{domain.RoleUser}, TotalPurchaseAmount: decimal.Zero})
	sellerUser := store.AddUser(domain.User{Email: "seller@example.com", Name: "Seller", Roles: []domain.Role{domain.RoleUser, domain.RoleSeller}, TotalPurchaseAmount: decimal.Zero})
	seller := store.AddSeller(domain.Seller{UserID: sellerUser.ID, BusinessName: "Acme"})
	return &fixture{
		store:      store,
		cache:      storage.NewMemoryCache().WithClock(fixedClock),
		publisher:  &recordingPublisher{},
		sink:       &recordingSink{},
		logger:     zaptest.NewLogger(t),
		buyer:      buyer,
		sellerUser: sellerUser,
		seller:     seller,
	}
}

func (f *fixture) addProduct(name, price string, stock int) domain.Product {
	return f.store.AddProduct(domain.Product{
		SellerID: f.seller.ID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
}

func (f *fixture) orders(opts ...OrderOption) *OrderService {
	opts = append([]OrderOption{WithOrderClock(fixedClock)}, opts...)
	return NewOrderService(f.store, f.cache, f.publisher, f.logger, opts...)
}

func (f *fixture) notifications() *NotificationService {
	s := NewNotificationService(f.store, f.sink, f.logger)
	s.now = fixedClock
	return s
}

func actorOf(u domain.User) domain.Actor {
	return domain.Actor{UserID: u.ID, Roles: u.Roles}
}

func mustProduct(t *testing.T, store port.Repository, id int64) domain.Product {
	t.Helper()
	p, err := store.GetProduct(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("get product %d: %v", id, err)
	}
	return *p
}

func mustUser(t *testing.T, store port.Repository, id int64) domain.User {
	t.Helper()
	u, err := store.GetUser(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return *u
}

func assertCode(t *testing.T, err error, kind error, code domain.ErrorCode) *domain.Error {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got: %v", kind, err)
	}
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
	if derr.Code != code {
		t.Fatalf("expected code %s, got %s", code, derr.Code)
	}
	return derr
}
