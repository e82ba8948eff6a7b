package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/handler/rpc"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type GRPCHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

var _ rpc.OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orderService *service.OrderService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, logger: logger.Named("grpc")}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *rpc.CreateOrderRequest) (*rpc.Order, error) {
	return h.call(ctx, "CreateOrder", func(actor domain.Actor) (*domain.Order, error) {
		return h.orderService.CreateOrder(ctx, actor, service.CreateOrderInput{
			Items:          req.Lines(),
			Shipping:       req.Shipping(),
			CouponID:       req.CouponID,
			IdempotencyKey: req.IdempotencyKey,
		})
	})
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *rpc.GetOrderRequest) (*rpc.Order, error) {
	return h.call(ctx, "GetOrder", func(actor domain.Actor) (*domain.Order, error) {
		return h.orderService.GetOrder(ctx, actor, req.OrderID)
	})
}

func (h *GRPCHandler) UpdateOrder(ctx context.Context, req *rpc.UpdateOrderRequest) (*rpc.Order, error) {
	return h.call(ctx, "UpdateOrder", func(actor domain.Actor) (*domain.Order, error) {
		return h.orderService.UpdateOrder(ctx, actor, req.OrderID, req.ShippingUpdate())
	})
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *rpc.CancelOrderRequest) (*rpc.Order, error) {
	return h.call(ctx, "CancelOrder", func(actor domain.Actor) (*domain.Order, error) {
		return h.orderService.CancelOrder(ctx, actor, req.OrderID)
	})
}

func (h *GRPCHandler) call(ctx context.Context, method string, fn func(domain.Actor) (*domain.Order, error)) (*rpc.Order, error) {
	actor, err := actorFromMetadata(ctx)
	if err != nil {
		return nil, grpcError(h.logger, method, err)
	}
	order, err := fn(actor)
	if err != nil {
		return nil, grpcError(h.logger, method, err)
	}
	return rpc.OrderFromDomain(order), nil
}
