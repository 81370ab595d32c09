package handler

import (
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type updateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// CreateOrder places an order for the authenticated user
// POST /api/orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	order, err := h.orderService.CreateOrder(c.UserContext(), getUserID(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Order created successfully", order)
}

// GetMyOrders
// GET /api/orders
func (h *OrderHandler) GetMyOrders(c *fiber.Ctx) error {
	orders, err := h.orderService.GetUserOrders(c.UserContext(), getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", orders)
}

// GetMyOrder answers 404 for orders that belong to someone else
// GET /api/orders/:id
func (h *OrderHandler) GetMyOrder(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	order, err := h.orderService.GetOrderForUser(c.UserContext(), getUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", order)
}

// GetAllOrders
// GET /api/admin/orders?status=&user_id=&page=&limit=
func (h *OrderHandler) GetAllOrders(c *fiber.Ctx) error {
	userID, err := uuidQuery(c, "user_id")
	if err != nil {
		return fail(c, err)
	}

	filter := service.OrderListFilter{
		UserID: userID,
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := model.OrderStatus(raw)
		filter.Status = &status
	}

	list, err := h.orderService.GetAllOrders(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", list.Items, list.Meta)
}

// GetOrder
// GET /api/admin/orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	order, err := h.orderService.GetOrder(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", order)
}

// UpdateOrderStatus moves an order between statuses, releasing stock when required
// PUT /api/admin/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	order, err := h.orderService.UpdateOrderStatus(c.UserContext(), id, req.Status, getUserName(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Order status updated", order)
}

// DeleteOrder
// DELETE /api/admin/orders/:id
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	if err := h.orderService.DeleteOrder(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Order deleted successfully", nil)
}
