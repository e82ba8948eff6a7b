package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type nopPublisher struct{}

func (nopPublisher) Publish(domain.StockChange) {}

type nopSink struct{}

func (nopSink) Deliver(context.Context, domain.Notification) error { return nil }

type testServer struct {
	app     *fiber.App
	store   *storage.MemoryAdapter
	buyer   domain.User
	seller  domain.User
	product domain.Product
	orders  *service.OrderService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryAdapter()
	cache := storage.NewMemoryCache()
	buyer := store.AddUser(domain.User{Email: "buyer@example.com", Roles: []domain.Role{domain.RoleUser}})
	sellerUser := store.AddUser(domain.User{Email: "seller@example.com", Roles: []domain.Role{domain.RoleUser, domain.RoleSeller}})
	seller := store.AddSeller(domain.Seller{UserID: sellerUser.ID, BusinessName: "Acme"})
	product := store.AddProduct(domain.Product{SellerID: seller.ID, Name: "Lamp", Price: decimal.RequireFromString("12.50"), Stock: 3})

	notifications := service.NewNotificationService(store, nopSink{}, logger)
	orders := service.NewOrderService(store, cache, nopPublisher{}, logger)
	h := NewHTTPHandler(Services{
		Orders:        orders,
		Products:      service.NewProductService(store, nopPublisher{}, logger),
		Subscriptions: service.NewSubscriptionService(store, logger),
		Notifications: notifications,
		Sellers:       service.NewSellerService(store, logger),
		Ranking:       service.NewRankingService(store, cache, logger, nil),
	})
	return &testServer{app: NewApp(h, logger), store: store, buyer: buyer, seller: sellerUser, product: product, orders: orders}
}

func (s *testServer) do(t *testing.T, method, path, body string, user *domain.User, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		roles := make([]string, 0, len(user.Roles))
		for _, r := range user.Roles {
			roles = append(roles, string(r))
		}
		req.Header.Set(HeaderUserID, strconv.FormatInt(user.ID, 10))
		req.Header.Set(HeaderUserRoles, strings.Join(roles, ","))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

func TestHealthCheckNeedsNoIdentity(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/orders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != "UNAUTHORIZED" {
		t.Errorf("expected 401 UNAUTHORIZED, got %d %v", resp.StatusCode, body)
	}
}

func TestCreateOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	payload := `{"items":[{"product_id":` + strconv.FormatInt(s.product.ID, 10) + `,"quantity":2}],"recipient_name":"Ann","address":"1 Main St"}`

	resp, body := s.do(t, http.MethodPost, "/api/orders", payload, &s.buyer, HeaderIdempotencyKey, "k-1")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["total_amount"] != "25" || data["status"] != "PENDING" {
		t.Errorf("unexpected order: %v", data)
	}
	id := strconv.FormatInt(int64(data["id"].(float64)), 10)

	resp, body = s.do(t, http.MethodPost, "/api/orders", payload, &s.buyer, HeaderIdempotencyKey, "k-1")
	if resp.StatusCode != http.StatusConflict || body["code"] != "DUPLICATE_REQUEST" {
		t.Errorf("expected 409 DUPLICATE_REQUEST, got %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/api/orders/"+id, "", &s.seller)
	if resp.StatusCode != http.StatusForbidden || body["code"] != "ACCESS_DENIED" {
		t.Errorf("expected 403, got %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPatch, "/api/orders/"+id, `{"address":"2 Side St"}`, &s.buyer)
	if resp.StatusCode != http.StatusOK || body["data"].(map[string]any)["address"] != "2 Side St" {
		t.Errorf("update failed: %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, http.MethodPost, "/api/orders/"+id+"/cancel", "", &s.buyer)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cancel failed: %d", resp.StatusCode)
	}
	resp, body = s.do(t, http.MethodPost, "/api/orders/"+id+"/cancel", "", &s.buyer)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "INVALID_ORDER_STATUS" {
		t.Errorf("expected 422, got %d %v", resp.StatusCode, body)
	}
}

func TestInsufficientStockCarriesDetail(t *testing.T) {
	s := newTestServer(t)
	payload := `{"items":[{"product_id":` + strconv.FormatInt(s.product.ID, 10) + `,"quantity":9}]}`

	resp, body := s.do(t, http.MethodPost, "/api/orders", payload, &s.buyer)
	if resp.StatusCode != http.StatusConflict || body["code"] != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected 409 INSUFFICIENT_STOCK, got %d %v", resp.StatusCode, body)
	}
	detail := body["detail"].(map[string]any)
	if detail["requested"] != float64(9) || detail["available"] != float64(3) {
		t.Errorf("unexpected detail: %v", detail)
	}
	if body["success"] != false || body["timestamp"] == nil {
		t.Errorf("unexpected envelope: %v", body)
	}
}

func TestValidationAndNotFound(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/orders", `{"items":[]}`, &s.buyer)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "VALIDATION_FAILED" {
		t.Errorf("expected 400, got %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, http.MethodGet, "/api/orders/abc", "", &s.buyer)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, http.MethodGet, "/api/orders/999", "", &s.buyer)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "ORDER_NOT_FOUND" {
		t.Errorf("expected 404, got %d %v", resp.StatusCode, body)
	}
}

func TestStockUpdateAndSubscriptions(t *testing.T) {
	s := newTestServer(t)
	pid := strconv.FormatInt(s.product.ID, 10)

	resp, _ := s.do(t, http.MethodPost, "/api/products/"+pid+"/restock-subscriptions", "", &s.buyer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("subscribe: %d", resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodPost, "/api/products/"+pid+"/restock-subscriptions", "", &s.buyer)
	if resp.StatusCode != http.StatusConflict || body["code"] != "DUPLICATE_SUBSCRIPTION" {
		t.Errorf("expected 409, got %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, http.MethodPut, "/api/products/"+pid+"/stock", `{"stock":10}`, &s.buyer)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected buyer stock update to be forbidden, got %d", resp.StatusCode)
	}
	resp, body = s.do(t, http.MethodPut, "/api/products/"+pid+"/stock", `{"stock":10}`, &s.seller)
	if resp.StatusCode != http.StatusOK || body["data"].(map[string]any)["stock"] != float64(10) {
		t.Errorf("seller stock update: %d %v", resp.StatusCode, body)
	}
	resp, _ = s.do(t, http.MethodPut, "/api/products/"+pid+"/stock", `{}`, &s.seller)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without stock, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	payload := `{"user_id":` + strconv.FormatInt(s.buyer.ID, 10) + `,"title":"Hi","content":"Welcome"}`

	resp, _ := s.do(t, http.MethodPost, "/api/admin/notifications", payload, &s.buyer)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}

	admin := s.store.AddUser(domain.User{Email: "admin@example.com", Roles: []domain.Role{domain.RoleAdmin}})
	resp, _ = s.do(t, http.MethodPost, "/api/admin/notifications", payload, &admin)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin send: %d", resp.StatusCode)
	}
	_, body := s.do(t, http.MethodGet, "/api/notifications/unread-count", "", &s.buyer)
	if body["data"].(map[string]any)["unread"] != float64(1) {
		t.Errorf("expected 1 unread, got %v", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "ROUTE_NOT_FOUND" {
		t.Errorf("expected 404 ROUTE_NOT_FOUND, got %d %v", resp.StatusCode, body)
	}
}
