package middleware

import (
	"strings"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
	LocalUserName  = "user_name"
	LocalUserRole  = "user_role"
)

// RequireAuth is middleware that validates JWT token and sets user info in context
func RequireAuth(userRepo repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.ErrUnauthorized.WithDetails("missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperror.ErrUnauthorized.WithDetails("invalid authorization format, use: Bearer <token>")
		}

		claims, err := jwt.ValidateToken(parts[1])
		if err != nil {
			return apperror.ErrUnauthorized.WithDetails("invalid or expired token")
		}

		// Check strict session against DB
		user, err := userRepo.FindByID(c.UserContext(), claims.UserID)
		if err != nil {
			return apperror.ErrUnauthorized.WithDetails("user not found")
		}
		if !user.IsActive {
			return apperror.ErrUserInactive
		}
		if user.TokenVersion != claims.TokenVersion {
			return apperror.ErrUnauthorized.WithDetails("session expired (logged in on another device)")
		}

		c.Locals(LocalUserID, user.ID.String())
		c.Locals(LocalUserEmail, user.Email)
		c.Locals(LocalUserName, user.FullName)
		// role comes from the database so a demotion applies immediately
		c.Locals(LocalUserRole, user.Role)

		return c.Next()
	}
}

// RequireRole allows the request through when the authenticated user has one of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalUserRole).(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return apperror.ErrForbidden.WithDetails("requires role: " + strings.Join(roles, ", "))
	}
}
