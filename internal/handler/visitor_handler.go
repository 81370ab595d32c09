package handler

import (
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type VisitorHandler struct {
	visitorService service.VisitorService
}

func NewVisitorHandler(visitorService service.VisitorService) *VisitorHandler {
	return &VisitorHandler{visitorService: visitorService}
}

// CheckIn records a visit for a registered phone number
// POST /api/visitors/checkin
func (h *VisitorHandler) CheckIn(c *fiber.Ctx) error {
	var req service.CheckInRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	visitor, err := h.visitorService.CheckIn(c.UserContext(), req.Phone)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Check-in successful", visitor)
}

// AdminCheckIn
// POST /api/admin/visitors/checkin/:userId
func (h *VisitorHandler) AdminCheckIn(c *fiber.Ctx) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return fail(c, err)
	}

	visitor, err := h.visitorService.AdminCheckIn(c.UserContext(), userID, getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Check-in recorded", visitor)
}

// GetVisitors
// GET /api/admin/visitors?include_archived=&archived=&members=&search=&page=&limit=
func (h *VisitorHandler) GetVisitors(c *fiber.Ctx) error {
	list, err := h.visitorService.List(c.UserContext(), service.VisitorListFilter{
		IncludeArchived: c.QueryBool("include_archived"),
		ArchivedOnly:    c.QueryBool("archived"),
		MembersOnly:     c.QueryBool("members"),
		Search:          c.Query("search"),
		Page:            c.QueryInt("page", 1),
		Limit:           c.QueryInt("limit", 20),
	})
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", list.Items, list.Meta)
}

// GetVisitor
// GET /api/admin/visitors/:id
func (h *VisitorHandler) GetVisitor(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	visitor, err := h.visitorService.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", visitor)
}

// Archive
// PUT /api/admin/visitors/:id/archive
func (h *VisitorHandler) Archive(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	visitor, err := h.visitorService.Archive(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Visitor archived", visitor)
}

// Unarchive
// PUT /api/admin/visitors/:id/unarchive
func (h *VisitorHandler) Unarchive(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	visitor, err := h.visitorService.Unarchive(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Visitor restored", visitor)
}
