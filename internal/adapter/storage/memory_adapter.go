package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type memState struct {
	nextID        int64
	users         map[int64]domain.User
	sellers       map[int64]domain.Seller
	products      map[int64]domain.Product
	orders        map[int64]domain.Order
	orderNumbers  map[string]int64
	subscriptions map[int64]domain.RestockSubscription
	notifications map[int64]domain.Notification
}

func newMemState() *memState {
	return &memState{
		users:         make(map[int64]domain.User),
		sellers:       make(map[int64]domain.Seller),
		products:      make(map[int64]domain.Product),
		orders:        make(map[int64]domain.Order),
		orderNumbers:  make(map[string]int64),
		subscriptions: make(map[int64]domain.RestockSubscription),
		notifications: make(map[int64]domain.Notification),
	}
}

// clone copies the maps. Stored values are never mutated in place, so
// sharing slices inside them is safe.
func (s *memState) clone() *memState {
	return &memState{
		nextID:        s.nextID,
		users:         maps.Clone(s.users),
		sellers:       maps.Clone(s.sellers),
		products:      maps.Clone(s.products),
		orders:        maps.Clone(s.orders),
		orderNumbers:  maps.Clone(s.orderNumbers),
		subscriptions: maps.Clone(s.subscriptions),
		notifications: maps.Clone(s.notifications),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// MemoryAdapter is an in-process Store. Transactions are serialised by a
// single mutex and applied copy-on-write, so a failed transaction leaves no
// trace.
type MemoryAdapter struct {
	memRepo
	mu sync.RWMutex
}

func NewMemoryAdapter() *MemoryAdapter {
	m := &MemoryAdapter{}
	m.memRepo = memRepo{state: newMemState(), mu: &m.mu}
	return m
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(tx port.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.state.clone()
	if err := fn(&memRepo{state: draft}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

// AddUser, AddSeller and AddProduct seed the store; a zero ID is assigned.

func (m *MemoryAdapter) AddUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.state.id()
	}
	m.state.users[u.ID] = u
	return u
}

func (m *MemoryAdapter) AddSeller(s domain.Seller) domain.Seller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.state.id()
	}
	m.state.sellers[s.ID] = s
	return s
}

func (m *MemoryAdapter) AddProduct(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.state.id()
	}
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	if s, ok := m.state.sellers[p.SellerID]; ok {
		p.SellerUserID = s.UserID
	}
	m.state.products[p.ID] = p
	return p
}

// DeleteProduct detaches the product from past order lines, like an
// ON DELETE SET NULL foreign key.
func (m *MemoryAdapter) DeleteProduct(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.products, id)
	for oid, o := range m.state.orders {
		items := slices.Clone(o.Items)
		for i := range items {
			if items[i].ProductID != nil && *items[i].ProductID == id {
				items[i].ProductID = nil
			}
		}
		o.Items = items
		m.state.orders[oid] = o
	}
}

// memRepo locks only when mu is set; inside WithinTx the outer lock is held.
type memRepo struct {
	state *memState
	mu    *sync.RWMutex
}

func (r *memRepo) read(fn func(s *memState)) {
	if r.mu != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	fn(r.state)
}

func (r *memRepo) write(fn func(s *memState) error) error {
	if r.mu != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return fn(r.state)
}

func (r *memRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	r.read(func(s *memState) {
		if u, ok := s.users[id]; ok {
			u.Roles = slices.Clone(u.Roles)
			out = &u
		}
	})
	return out, nil
}

func (r *memRepo) UpdateUserRoles(_ context.Context, id int64, roles []domain.Role) error {
	return r.write(func(s *memState) error {
		u, ok := s.users[id]
		if !ok {
			return nil
		}
		u.Roles = slices.Clone(roles)
		s.users[id] = u
		return nil
	})
}

func (r *memRepo) AddPurchaseAmount(_ context.Context, userID int64, delta decimal.Decimal) error {
	return r.write(func(s *memState) error {
		u, ok := s.users[userID]
		if !ok {
			return nil
		}
		u.TotalPurchaseAmount = u.TotalPurchaseAmount.Add(delta)
		s.users[userID] = u
		return nil
	})
}

func (r *memRepo) ListSellers(_ context.Context) ([]domain.Seller, error) {
	var out []domain.Seller
	r.read(func(s *memState) {
		out = slices.SortedFunc(maps.Values(s.sellers), func(a, b domain.Seller) int { return cmp.Compare(a.ID, b.ID) })
	})
	return out, nil
}

func (r *memRepo) GetSellerByUser(_ context.Context, userID int64) (*domain.Seller, error) {
	var out *domain.Seller
	r.read(func(s *memState) {
		for _, sl := range s.sellers {
			if sl.UserID == userID {
				out = &sl
				return
			}
		}
	})
	return out, nil
}

func (r *memRepo) CreateSeller(_ context.Context, seller *domain.Seller) error {
	return r.write(func(s *memState) error {
		seller.ID = s.id()
		s.sellers[seller.ID] = *seller
		return nil
	})
}

func (r *memRepo) DeleteSeller(_ context.Context, id int64) error {
	return r.write(func(s *memState) error {
		delete(s.sellers, id)
		return nil
	})
}

func (r *memRepo) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	var out *domain.Product
	r.read(func(s *memState) {
		if p, ok := s.products[id]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r *memRepo) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return r.GetProduct(ctx, id)
}

func (r *memRepo) SaveProductStock(_ context.Context, p domain.Product) error {
	return r.write(func(s *memState) error {
		cur, ok := s.products[p.ID]
		if !ok {
			return nil
		}
		cur.Stock = p.Stock
		cur.SalesCount = p.SalesCount
		cur.Status = p.Status
		cur.UpdatedAt = p.UpdatedAt
		s.products[p.ID] = cur
		return nil
	})
}

func (r *memRepo) ListActiveInStockProducts(_ context.Context) ([]domain.Product, error) {
	var out []domain.Product
	r.read(func(s *memState) {
		for _, p := range s.products {
			if p.Status == domain.ProductStatusActive && p.Stock > 0 {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *memRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	return r.write(func(s *memState) error {
		if _, dup := s.orderNumbers[order.OrderNumber]; dup {
			return port.ErrDuplicateOrderNumber
		}
		order.ID = s.id()
		for i := range order.Items {
			order.Items[i].ID = s.id()
			order.Items[i].OrderID = order.ID
		}
		stored := *order
		stored.Items = slices.Clone(order.Items)
		s.orders[order.ID] = stored
		s.orderNumbers[order.OrderNumber] = order.ID
		return nil
	})
}

func (r *memRepo) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	r.read(func(s *memState) {
		if o, ok := s.orders[id]; ok {
			o.Items = slices.Clone(o.Items)
			out = &o
		}
	})
	return out, nil
}

func (r *memRepo) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *memRepo) ListOrdersByUser(_ context.Context, userID int64, limit, offset int) ([]domain.Order, error) {
	var out []domain.Order
	r.read(func(s *memState) {
		for _, o := range s.orders {
			if o.UserID == userID {
				o.Items = slices.Clone(o.Items)
				out = append(out, o)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Order) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(out, limit, offset), nil
}

func (r *memRepo) UpdateOrder(_ context.Context, order domain.Order) error {
	return r.write(func(s *memState) error {
		cur, ok := s.orders[order.ID]
		if !ok {
			return nil
		}
		cur.Status = order.Status
		cur.Shipping = order.Shipping
		cur.UpdatedAt = order.UpdatedAt
		s.orders[order.ID] = cur
		return nil
	})
}

func (r *memRepo) SellerSalesSince(_ context.Context, sellerID int64, since time.Time) ([]domain.ProductSales, error) {
	totals := make(map[int64]*domain.ProductSales)
	r.read(func(s *memState) {
		for _, o := range s.orders {
			for _, it := range o.Items {
				if it.SellerID != sellerID || it.ProductID == nil || !it.CreatedAt.After(since) {
					continue
				}
				ps, ok := totals[*it.ProductID]
				if !ok {
					ps = &domain.ProductSales{ProductID: *it.ProductID, Revenue: decimal.Zero}
					totals[*it.ProductID] = ps
				}
				ps.UnitsSold += int64(it.Quantity)
				ps.Revenue = ps.Revenue.Add(it.Subtotal)
			}
		}
	})
	out := make([]domain.ProductSales, 0, len(totals))
	for _, ps := range totals {
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b domain.ProductSales) int {
		return cmp.Or(cmp.Compare(b.UnitsSold, a.UnitsSold), b.Revenue.Cmp(a.Revenue), cmp.Compare(a.ProductID, b.ProductID))
	})
	return out, nil
}

func (r *memRepo) UnitsSoldSince(_ context.Context, productID int64, since time.Time) (int64, error) {
	var units int64
	r.read(func(s *memState) {
		for _, o := range s.orders {
			for _, it := range o.Items {
				if it.ProductID != nil && *it.ProductID == productID && it.CreatedAt.After(since) {
					units += int64(it.Quantity)
				}
			}
		}
	})
	return units, nil
}

func (r *memRepo) CreateSubscription(_ context.Context, sub *domain.RestockSubscription) error {
	return r.write(func(s *memState) error {
		for _, existing := range s.subscriptions {
			if existing.ProductID == sub.ProductID && existing.UserID == sub.UserID {
				return port.ErrDuplicateSubscription
			}
		}
		sub.ID = s.id()
		s.subscriptions[sub.ID] = *sub
		return nil
	})
}

func (r *memRepo) GetSubscription(_ context.Context, id int64) (*domain.RestockSubscription, error) {
	var out *domain.RestockSubscription
	r.read(func(s *memState) {
		if sub, ok := s.subscriptions[id]; ok {
			out = &sub
		}
	})
	return out, nil
}

func (r *memRepo) FindSubscription(_ context.Context, productID, userID int64) (*domain.RestockSubscription, error) {
	var out *domain.RestockSubscription
	r.read(func(s *memState) {
		for _, sub := range s.subscriptions {
			if sub.ProductID == productID && sub.UserID == userID {
				out = &sub
				return
			}
		}
	})
	return out, nil
}

func (r *memRepo) listSubscriptions(match func(domain.RestockSubscription) bool) []domain.RestockSubscription {
	var out []domain.RestockSubscription
	r.read(func(s *memState) {
		for _, sub := range s.subscriptions {
			if match(sub) {
				out = append(out, sub)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.RestockSubscription) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *memRepo) ListPendingSubscriptions(_ context.Context, productID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(func(s domain.RestockSubscription) bool {
		return s.ProductID == productID && !s.Notified
	}), nil
}

func (r *memRepo) ListSubscriptionsByUser(_ context.Context, userID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(func(s domain.RestockSubscription) bool { return s.UserID == userID }), nil
}

func (r *memRepo) ListSubscriptionsByProduct(_ context.Context, productID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(func(s domain.RestockSubscription) bool { return s.ProductID == productID }), nil
}

func (r *memRepo) MarkSubscriptionNotified(_ context.Context, id int64) (bool, error) {
	var claimed bool
	err := r.write(func(s *memState) error {
		if sub, ok := s.subscriptions[id]; ok && !sub.Notified {
			sub.Notified = true
			s.subscriptions[id] = sub
			claimed = true
		}
		return nil
	})
	return claimed, err
}

func (r *memRepo) DeleteSubscription(_ context.Context, id int64) error {
	return r.write(func(s *memState) error {
		delete(s.subscriptions, id)
		return nil
	})
}

func (r *memRepo) CreateNotification(_ context.Context, n *domain.Notification) error {
	return r.write(func(s *memState) error {
		n.ID = s.id()
		s.notifications[n.ID] = *n
		return nil
	})
}

func (r *memRepo) GetNotification(_ context.Context, id int64) (*domain.Notification, error) {
	var out *domain.Notification
	r.read(func(s *memState) {
		if n, ok := s.notifications[id]; ok {
			out = &n
		}
	})
	return out, nil
}

func (r *memRepo) ListNotifications(_ context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	var out []domain.Notification
	r.read(func(s *memState) {
		for _, n := range s.notifications {
			if n.UserID == userID && (!unreadOnly || !n.Read) {
				out = append(out, n)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(out, limit, offset), nil
}

func (r *memRepo) CountUnreadNotifications(_ context.Context, userID int64) (int64, error) {
	var count int64
	r.read(func(s *memState) {
		for _, n := range s.notifications {
			if n.UserID == userID && !n.Read {
				count++
			}
		}
	})
	return count, nil
}

func (r *memRepo) MarkNotificationRead(_ context.Context, id int64) error {
	return r.write(func(s *memState) error {
		if n, ok := s.notifications[id]; ok {
			n.Read = true
			s.notifications[id] = n
		}
		return nil
	})
}

func (r *memRepo) MarkAllNotificationsRead(_ context.Context, userID int64) error {
	return r.write(func(s *memState) error {
		for id, n := range s.notifications {
			if n.UserID == userID && !n.Read {
				n.Read = true
				s.notifications[id] = n
			}
		}
		return nil
	})
}

func (r *memRepo) DeleteNotification(_ context.Context, id int64) error {
	return r.write(func(s *memState) error {
		delete(s.notifications, id)
		return nil
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
