package handler

import (
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUser handles user creation
// POST /api/admin/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	user, err := h.userService.CreateUser(c.UserContext(), &req, getUserID(c).String())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "User created successfully", user)
}

// UpdateUser handles user update
// PUT /api/admin/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req service.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	user, err := h.userService.UpdateUser(c.UserContext(), id, &req, getUserID(c).String())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "User updated successfully", user)
}

// GetUsers
// GET /api/admin/users?role=&search=&page=&limit=
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	list, err := h.userService.GetUsers(c.UserContext(), service.UserListFilter{
		Role:   c.Query("role"),
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	})
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", list.Items, list.Meta)
}

// GetUser
// GET /api/admin/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	user, err := h.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", user)
}
