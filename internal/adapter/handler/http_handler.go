package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/handler/rpc"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type Services struct {
	Orders        *service.OrderService
	Products      *service.ProductService
	Subscriptions *service.SubscriptionService
	Notifications *service.NotificationService
	Sellers       *service.SellerService
	Ranking       *service.RankingService
}

type HTTPHandler struct {
	svc Services
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type StockUpdateRequest struct {
	Stock *int `json:"stock"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type SellerRegistrationRequest struct {
	BusinessName string `json:"business_name"`
}

type SendNotificationRequest struct {
	UserID  int64  `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ProductResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
	Status     string `json:"status"`
	SalesCount int    `json:"sales_count"`
}

type SubscriptionResponse struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

type SellerResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewHTTPHandler(svc Services) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// NewApp builds the fiber application with middleware and every route.
func NewApp(h *HTTPHandler, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: ErrorHandler(log.Named("http")),
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, " + HeaderIdempotencyKey + ", " + HeaderUserID + ", " + HeaderUserRoles,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency} - ${locals:requestid}\n",
	}))
	h.Register(app)
	return app
}

func (h *HTTPHandler) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	api := app.Group("/api", RequireIdentity())

	api.Post("/orders", h.CreateOrder)
	api.Get("/orders", h.ListOrders)
	api.Get("/orders/:id", h.GetOrder)
	api.Patch("/orders/:id", h.UpdateOrder)
	api.Post("/orders/:id/cancel", h.CancelOrder)

	api.Put("/products/:id/stock", h.UpdateStock)
	api.Post("/products/:id/restock-subscriptions", h.Subscribe)
	api.Get("/products/:id/restock-subscriptions", h.ListProductSubscriptions)
	api.Get("/restock-subscriptions", h.ListMySubscriptions)
	api.Delete("/restock-subscriptions/:id", h.Unsubscribe)

	api.Get("/notifications", h.ListNotifications)
	api.Get("/notifications/unread-count", h.UnreadCount)
	api.Patch("/notifications/read-all", h.MarkAllNotificationsRead)
	api.Patch("/notifications/:id/read", h.MarkNotificationRead)
	api.Delete("/notifications/:id", h.DeleteNotification)

	api.Post("/sellers", h.RegisterSeller)
	api.Delete("/sellers/me", h.UnregisterSeller)
	api.Get("/sellers/:id/ranking", h.SellerRanking)

	admin := api.Group("/admin", RequireRole(domain.RoleAdmin))
	admin.Patch("/orders/:id/status", h.AdvanceOrderStatus)
	admin.Post("/notifications", h.SendNotification)
}

func (h *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HTTPHandler) CreateOrder(c *fiber.Ctx) error {
	var req rpc.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Validation("invalid request body")
	}
	order, err := h.svc.Orders.CreateOrder(c.UserContext(), actorFrom(c), service.CreateOrderInput{
		Items:          req.Lines(),
		Shipping:       req.Shipping(),
		CouponID:       req.CouponID,
		IdempotencyKey: c.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Message: "order placed successfully", Data: rpc.OrderFromDomain(order)})
}

func (h *HTTPHandler) ListOrders(c *fiber.Ctx) error {
	orders, err := h.svc.Orders.ListOrders(c.UserContext(), actorFrom(c), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}
	out := make([]*rpc.Order, 0, len(orders))
	for i := range orders {
		out = append(out, rpc.OrderFromDomain(&orders[i]))
	}
	return c.JSON(Response{Success: true, Data: out})
}

func (h *HTTPHandler) GetOrder(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Orders.GetOrder(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: rpc.OrderFromDomain(order)})
}

func (h *HTTPHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req rpc.UpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Validation("invalid request body")
	}
	order, err := h.svc.Orders.UpdateOrder(c.UserContext(), actorFrom(c), id, req.ShippingUpdate())
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Message: "order updated", Data: rpc.OrderFromDomain(order)})
}

func (h *HTTPHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Orders.CancelOrder(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Message: "order cancelled", Data: rpc.OrderFromDomain(order)})
}

func (h *HTTPHandler) AdvanceOrderStatus(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Validation("invalid request body")
	}
	order, err := h.svc.Orders.AdvanceStatus(c.UserContext(), id, domain.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: rpc.OrderFromDomain(order)})
}

func (h *HTTPHandler) UpdateStock(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StockUpdateRequest
	if err := c.BodyParser(&req); err != nil || req.Stock == nil {
		return domain.Validation("stock is required")
	}
	p, err := h.svc.Products.UpdateStock(c.UserContext(), actorFrom(c), id, *req.Stock)
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Message: "stock updated", Data: ProductResponse{
		ID: p.ID, Name: p.Name, Stock: p.Stock, Status: string(p.Status), SalesCount: p.SalesCount,
	}})
}

func (h *HTTPHandler) Subscribe(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Subscriptions.Subscribe(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: subscriptionResponse(*sub)})
}

func (h *HTTPHandler) ListProductSubscriptions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	subs, err := h.svc.Subscriptions.ListForProduct(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: subscriptionResponses(subs)})
}

func (h *HTTPHandler) ListMySubscriptions(c *fiber.Ctx) error {
	subs, err := h.svc.Subscriptions.ListMine(c.UserContext(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: subscriptionResponses(subs)})
}

func (h *HTTPHandler) Unsubscribe(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Subscriptions.Unsubscribe(c.UserContext(), actorFrom(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPHandler) ListNotifications(c *fiber.Ctx) error {
	list, err := h.svc.Notifications.List(c.UserContext(), actorFrom(c), c.QueryBool("unread"), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: list})
}

func (h *HTTPHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.svc.Notifications.UnreadCount(c.UserContext(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: fiber.Map{"unread": n}})
}

func (h *HTTPHandler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Notifications.MarkRead(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(Response{Success: true, Data: n})
}

func (h *HTTPHandler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	if err := h.svc.Notifications.MarkAllRead(c.UserContext(), actorFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPHandler) DeleteNotification(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Notifications.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPHandler) SendNotification(c *fiber.Ctx) error {
	var req SendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Validation("invalid request body")
	}
	n, err := h.svc.Notifications.Send(c.UserContext(), actorFrom(c), service.SendNotificationInput{
		UserID:  req.UserID,
		Type:    domain.NotificationType(req.Type),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: n})
}

func (h *HTTPHandler) RegisterSeller(c *fiber.Ctx) error {
	var req SellerRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Validation("invalid request body")
	}
	s, err := h.svc.Sellers.Register(c.UserContext(), actorFrom(c), req.BusinessName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: SellerResponse{
		ID: s.ID, UserID: s.UserID, BusinessName: s.BusinessName, CreatedAt: s.CreatedAt,
	}})
}

func (h *HTTPHandler) UnregisterSeller(c *fiber.Ctx) error {
	if err := h.svc.Sellers.Unregister(c.UserContext(), actorFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPHandler) SellerRanking(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.Ranking.SellerRanking(c.UserContext(), id)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.ProductSales{}
	}
	return c.JSON(Response{Success: true, Data: entries})
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("invalid id %q", c.Params("id"))
	}
	return id, nil
}

func subscriptionResponse(s domain.RestockSubscription) SubscriptionResponse {
	return SubscriptionResponse{ID: s.ID, ProductID: s.ProductID, UserID: s.UserID, Notified: s.Notified, CreatedAt: s.CreatedAt}
}

func subscriptionResponses(subs []domain.RestockSubscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, subscriptionResponse(s))
	}
	return out
}
