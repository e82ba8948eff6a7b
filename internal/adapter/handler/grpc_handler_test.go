package handler

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/storefront/internal/adapter/handler/rpc"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

func startGRPC(t *testing.T) (*rpc.OrderServiceClient, *storage.MemoryAdapter, domain.Actor, domain.Product) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryAdapter()
	buyer := store.AddUser(domain.User{Email: "buyer@example.com", Roles: []domain.Role{domain.RoleUser}})
	sellerUser := store.AddUser(domain.User{Email: "seller@example.com", Roles: []domain.Role{domain.RoleSeller}})
	seller := store.AddSeller(domain.Seller{UserID: sellerUser.ID, BusinessName: "Acme"})
	product := store.AddProduct(domain.Product{SellerID: seller.ID, Name: "Mug", Price: decimal.RequireFromString("4.20"), Stock: 5})

	orders := service.NewOrderService(store, storage.NewMemoryCache(), nopPublisher{}, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	rpc.RegisterOrderServiceServer(srv, NewGRPCHandler(orders, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return rpc.NewOrderServiceClient(conn), store, domain.Actor{UserID: buyer.ID, Roles: buyer.Roles}, product
}

func TestGRPCOrderFlow(t *testing.T) {
	client, store, buyer, product := startGRPC(t)
	ctx := OutgoingIdentity(context.Background(), buyer)

	created, err := client.CreateOrder(ctx, &rpc.CreateOrderRequest{
		Items:   []rpc.LineItem{{ProductID: product.ID, Quantity: 2}},
		Address: "1 Main St",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !created.TotalAmount.Equal(decimal.RequireFromString("8.40")) || created.Status != string(domain.OrderStatusPending) {
		t.Errorf("unexpected order: %+v", created)
	}

	name := "Bea"
	updated, err := client.UpdateOrder(ctx, &rpc.UpdateOrderRequest{OrderID: created.ID, RecipientName: &name})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.RecipientName != "Bea" || updated.Address != "1 Main St" {
		t.Errorf("partial update lost fields: %+v", updated)
	}

	if _, err := client.CancelOrder(ctx, &rpc.CancelOrderRequest{OrderID: created.ID}); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	p, _ := store.GetProduct(context.Background(), product.ID)
	if p.Stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", p.Stock)
	}

	got, err := client.GetOrder(ctx, &rpc.GetOrderRequest{OrderID: created.ID})
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != string(domain.OrderStatusCancelled) {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
}

func TestGRPCStatusCodes(t *testing.T) {
	client, _, buyer, product := startGRPC(t)

	tests := []struct {
		name string
		ctx  context.Context
		req  *rpc.CreateOrderRequest
		want codes.Code
	}{
		{"no identity", context.Background(), &rpc.CreateOrderRequest{Items: []rpc.LineItem{{ProductID: product.ID, Quantity: 1}}}, codes.Unauthenticated},
		{"empty lines", OutgoingIdentity(context.Background(), buyer), &rpc.CreateOrderRequest{}, codes.InvalidArgument},
		{"unknown product", OutgoingIdentity(context.Background(), buyer), &rpc.CreateOrderRequest{Items: []rpc.LineItem{{ProductID: 999, Quantity: 1}}}, codes.NotFound},
		{"insufficient stock", OutgoingIdentity(context.Background(), buyer), &rpc.CreateOrderRequest{Items: []rpc.LineItem{{ProductID: product.ID, Quantity: 6}}}, codes.Aborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateOrder(tt.ctx, tt.req)
			if got := status.Code(err); got != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestGRPCForeignOrderIsDenied(t *testing.T) {
	client, store, buyer, product := startGRPC(t)
	created, err := client.CreateOrder(OutgoingIdentity(context.Background(), buyer), &rpc.CreateOrderRequest{
		Items: []rpc.LineItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	other := store.AddUser(domain.User{Email: "other@example.com", Roles: []domain.Role{domain.RoleUser}})
	_, err = client.CancelOrder(OutgoingIdentity(context.Background(), domain.Actor{UserID: other.ID, Roles: other.Roles}),
		&rpc.CancelOrderRequest{OrderID: created.ID})
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("expected PermissionDenied, got %v", err)
	}
}
