package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

//go:embed schema.sql
var schemaSQL string

const mysqlErrDuplicateEntry = 1062

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLAdapter struct {
	mysqlRepo
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{mysqlRepo: mysqlRepo{q: db}, db: db}
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// WithinTx runs fn in a READ COMMITTED transaction. Lock* methods on tx take
// row locks that are held until commit or rollback.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(tx port.Repository) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlRepo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type mysqlRepo struct {
	q querier
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func encodeRoles(roles []domain.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func decodeRoles(s string) []domain.Role {
	var roles []domain.Role
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, domain.Role(part))
		}
	}
	return roles
}

func (r *mysqlRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	var roles string
	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, name, roles, total_purchase_amount, created_at, updated_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &roles, &u.TotalPurchaseAmount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Roles = decodeRoles(roles)
	return &u, nil
}

func (r *mysqlRepo) UpdateUserRoles(ctx context.Context, id int64, roles []domain.Role) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET roles = ?, updated_at = NOW(6) WHERE id = ?`,
		encodeRoles(roles), id,
	)
	if err != nil {
		return fmt.Errorf("update user roles: %w", err)
	}
	return nil
}

func (r *mysqlRepo) AddPurchaseAmount(ctx context.Context, userID int64, delta decimal.Decimal) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET total_purchase_amount = total_purchase_amount + ?, updated_at = NOW(6)
		WHERE id = ?`,
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("update purchase amount: %w", err)
	}
	return nil
}

func (r *mysqlRepo) ListSellers(ctx context.Context) ([]domain.Seller, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, business_name, created_at FROM sellers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sellers: %w", err)
	}
	defer rows.Close()

	var sellers []domain.Seller
	for rows.Next() {
		var s domain.Seller
		if err := rows.Scan(&s.ID, &s.UserID, &s.BusinessName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan seller: %w", err)
		}
		sellers = append(sellers, s)
	}
	return sellers, rows.Err()
}

func (r *mysqlRepo) GetSellerByUser(ctx context.Context, userID int64) (*domain.Seller, error) {
	var s domain.Seller
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, business_name, created_at FROM sellers WHERE user_id = ?`, userID,
	).Scan(&s.ID, &s.UserID, &s.BusinessName, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query seller: %w", err)
	}
	return &s, nil
}

func (r *mysqlRepo) CreateSeller(ctx context.Context, seller *domain.Seller) error {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO sellers (user_id, business_name, created_at) VALUES (?, ?, ?)`,
		seller.UserID, seller.BusinessName, seller.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert seller: %w", err)
	}
	seller.ID, err = result.LastInsertId()
	return err
}

func (r *mysqlRepo) DeleteSeller(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sellers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete seller: %w", err)
	}
	return nil
}

const productColumns = `
	p.id, p.seller_id, COALESCE(s.user_id, 0), p.name, p.price, p.stock, p.status,
	p.sales_count, p.created_at, p.updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.SellerUserID, &p.Name, &p.Price, &p.Stock, &p.Status,
		&p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mysqlRepo) getProduct(ctx context.Context, id int64, lock string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p LEFT JOIN sellers s ON s.id = p.seller_id
		WHERE p.id = ?`+lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (r *mysqlRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return r.getProduct(ctx, id, "")
}

func (r *mysqlRepo) LockProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return r.getProduct(ctx, id, " FOR UPDATE OF p")
}

func (r *mysqlRepo) SaveProductStock(ctx context.Context, p domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, sales_count = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		p.Stock, p.SalesCount, p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return nil
}

func (r *mysqlRepo) ListActiveInStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p LEFT JOIN sellers s ON s.id = p.seller_id
		WHERE p.status = ? AND p.stock > 0
		ORDER BY p.id`, domain.ProductStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *mysqlRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (user_id, order_number, status, total_amount, final_amount,
			recipient_name, recipient_phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.UserID, order.OrderNumber, order.Status, order.TotalAmount, order.FinalAmount,
		order.RecipientName, order.RecipientPhone, order.Address, order.CreatedAt, order.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return port.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if order.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		result, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, seller_id, product_name, price,
				quantity, subtotal, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.SellerID, item.ProductName, item.Price,
			item.Quantity, item.Subtotal, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		if item.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("order item id: %w", err)
		}
	}
	return nil
}

const orderColumns = `
	id, user_id, order_number, status, total_amount, final_amount,
	recipient_name, recipient_phone, address, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.FinalAmount,
		&o.RecipientName, &o.RecipientPhone, &o.Address, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *mysqlRepo) getOrder(ctx context.Context, id int64, lock string) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`+lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if o.Items, err = r.orderItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *mysqlRepo) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, product_id, seller_id, product_name, price, quantity, subtotal, created_at
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var productID sql.NullInt64
		if err := rows.Scan(&it.ID, &it.OrderID, &productID, &it.SellerID, &it.ProductName, &it.Price,
			&it.Quantity, &it.Subtotal, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			it.ProductID = &productID.Int64
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *mysqlRepo) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOrder(ctx, id, "")
}

func (r *mysqlRepo) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOrder(ctx, id, " FOR UPDATE")
}

func (r *mysqlRepo) ListOrdersByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range orders {
		if orders[i].Items, err = r.orderItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *mysqlRepo) UpdateOrder(ctx context.Context, order domain.Order) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, recipient_name = ?, recipient_phone = ?, address = ?, updated_at = ?
		WHERE id = ?`,
		order.Status, order.RecipientName, order.RecipientPhone, order.Address, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (r *mysqlRepo) SellerSalesSince(ctx context.Context, sellerID int64, since time.Time) ([]domain.ProductSales, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, SUM(quantity) AS units, SUM(subtotal) AS revenue
		FROM order_items
		WHERE seller_id = ? AND created_at > ? AND product_id IS NOT NULL
		GROUP BY product_id
		ORDER BY units DESC, revenue DESC, product_id`,
		sellerID, since)
	if err != nil {
		return nil, fmt.Errorf("query seller sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.ProductSales
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.UnitsSold, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("scan seller sales: %w", err)
		}
		sales = append(sales, ps)
	}
	return sales, rows.Err()
}

func (r *mysqlRepo) UnitsSoldSince(ctx context.Context, productID int64, since time.Time) (int64, error) {
	var units int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM order_items
		WHERE product_id = ? AND created_at > ?`,
		productID, since,
	).Scan(&units)
	if err != nil {
		return 0, fmt.Errorf("query units sold: %w", err)
	}
	return units, nil
}

const subscriptionColumns = `id, product_id, user_id, notified, created_at`

func scanSubscription(row rowScanner) (*domain.RestockSubscription, error) {
	var s domain.RestockSubscription
	if err := row.Scan(&s.ID, &s.ProductID, &s.UserID, &s.Notified, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mysqlRepo) CreateSubscription(ctx context.Context, sub *domain.RestockSubscription) error {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO restock_subscriptions (product_id, user_id, notified, created_at)
		VALUES (?, ?, ?, ?)`,
		sub.ProductID, sub.UserID, sub.Notified, sub.CreatedAt,
	)
	if isDuplicateEntry(err) {
		return port.ErrDuplicateSubscription
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.ID, err = result.LastInsertId()
	return err
}

func (r *mysqlRepo) querySubscription(ctx context.Context, where string, args ...any) (*domain.RestockSubscription, error) {
	s, err := scanSubscription(r.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM restock_subscriptions WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return s, nil
}

func (r *mysqlRepo) GetSubscription(ctx context.Context, id int64) (*domain.RestockSubscription, error) {
	return r.querySubscription(ctx, `id = ?`, id)
}

func (r *mysqlRepo) FindSubscription(ctx context.Context, productID, userID int64) (*domain.RestockSubscription, error) {
	return r.querySubscription(ctx, `product_id = ? AND user_id = ?`, productID, userID)
}

func (r *mysqlRepo) listSubscriptions(ctx context.Context, where string, args ...any) ([]domain.RestockSubscription, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM restock_subscriptions WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.RestockSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func (r *mysqlRepo) ListPendingSubscriptions(ctx context.Context, productID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(ctx, `product_id = ? AND notified = FALSE`, productID)
}

func (r *mysqlRepo) ListSubscriptionsByUser(ctx context.Context, userID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(ctx, `user_id = ?`, userID)
}

func (r *mysqlRepo) ListSubscriptionsByProduct(ctx context.Context, productID int64) ([]domain.RestockSubscription, error) {
	return r.listSubscriptions(ctx, `product_id = ?`, productID)
}

func (r *mysqlRepo) MarkSubscriptionNotified(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE restock_subscriptions SET notified = TRUE WHERE id = ? AND notified = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark subscription notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark subscription notified: %w", err)
	}
	return n == 1, nil
}

func (r *mysqlRepo) DeleteSubscription(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM restock_subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

const notificationColumns = `id, user_id, type, title, content, is_read, created_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Content, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *mysqlRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, title, content, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Title, n.Content, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID, err = result.LastInsertId()
	return err
}

func (r *mysqlRepo) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := scanNotification(r.q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return n, nil
}

func (r *mysqlRepo) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.q.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *mysqlRepo) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

func (r *mysqlRepo) MarkNotificationRead(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *mysqlRepo) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (r *mysqlRepo) DeleteNotification(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
