package handler

import (
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
}

func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetStockMovement returns stock movement data for chart
// GET /api/admin/dashboard/stock-movement?days=7
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	data, err := h.dashboardService.GetStockMovement(c.UserContext(), c.QueryInt("days", 7))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", data)
}

// GetDashboardStats returns dashboard statistics
// GET /api/admin/dashboard/stats
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.dashboardService.GetDashboardStats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", stats)
}
