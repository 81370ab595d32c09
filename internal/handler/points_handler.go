package handler

import (
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PointsHandler struct {
	pointsService service.PointsService
}

func NewPointsHandler(pointsService service.PointsService) *PointsHandler {
	return &PointsHandler{pointsService: pointsService}
}

func historyFilter(c *fiber.Ctx) (service.PointsHistoryFilter, error) {
	filter := service.PointsHistoryFilter{
		Type:   model.AdjustmentType(c.Query("type")),
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	var err error
	if filter.From, err = dateQuery(c, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = dateQuery(c, "to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// GetMyBalance
// GET /api/points/me
func (h *PointsHandler) GetMyBalance(c *fiber.Ctx) error {
	balance, err := h.pointsService.GetBalance(c.UserContext(), getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", balance)
}

// GetMyHistory
// GET /api/points/history
func (h *PointsHandler) GetMyHistory(c *fiber.Ctx) error {
	return h.userHistory(c, getUserID(c))
}

// GetUserHistory
// GET /api/points/admin/users/:userId/history
func (h *PointsHandler) GetUserHistory(c *fiber.Ctx) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	return h.userHistory(c, userID)
}

func (h *PointsHandler) userHistory(c *fiber.Ctx, userID uuid.UUID) error {
	filter, err := historyFilter(c)
	if err != nil {
		return fail(c, err)
	}

	history, err := h.pointsService.GetUserPointsHistory(c.UserContext(), userID, filter)
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", history.Items, history.Meta)
}

// AdjustPoints adds or subtracts points for a user
// POST /api/points/admin/adjust/:userId
func (h *PointsHandler) AdjustPoints(c *fiber.Ctx) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	var req service.AdjustPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}
	req.UserID = userID
	req.AdjustedBy = getUserID(c)

	result, err := h.pointsService.AdjustUserPoints(c.UserContext(), &req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Points adjusted successfully", result)
}

// GetAllHistory
// GET /api/points/admin/history?user_id=&type=&from=&to=&search=&page=&limit=
func (h *PointsHandler) GetAllHistory(c *fiber.Ctx) error {
	filter, err := historyFilter(c)
	if err != nil {
		return fail(c, err)
	}
	if filter.UserID, err = uuidQuery(c, "user_id"); err != nil {
		return fail(c, err)
	}

	history, err := h.pointsService.GetAllPointsAdjustments(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", history.Items, history.Meta)
}

// GetStats
// GET /api/points/admin/stats
func (h *PointsHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.pointsService.GetPointsStats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", stats)
}
