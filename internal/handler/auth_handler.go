package handler

import (
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a customer account and logs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	resp, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Registration successful", resp)
}

// Login handles user authentication
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	resp, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Login successful", resp)
}

// Me returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.authService.Me(c.UserContext(), getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", user)
}

// ChangePassword handles password change. Other sessions are invalidated.
// PUT /api/auth/password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	if err := h.authService.ChangePassword(c.UserContext(), getUserID(c), &req); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Password changed successfully, please log in again", nil)
}
