package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/pkg/database"
	"go-loyalty-store/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(userRepo repository.UserRepository) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := apperror.From(err)
			return c.Status(e.HTTPCode()).SendString(e.Code())
		},
	})
	app.Get("/me", RequireAuth(userRepo), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalUserRole).(string) + ":" + c.Locals(LocalUserID).(string))
	})
	app.Get("/admin", RequireAuth(userRepo), RequireRole(model.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func call(t *testing.T, app *fiber.App, path, auth string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestRequireAuth(t *testing.T) {
	jwt.Configure("middleware-test-secret", time.Hour)
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	userRepo := repository.NewUserRepo(db)

	user := &model.User{Email: "c@example.com", FullName: "Cust", Role: model.RoleCustomer, IsActive: true, TokenVersion: "v1"}
	require.NoError(t, userRepo.Create(context.Background(), user))
	token, err := jwt.GenerateToken(user.ID, user.Email, user.FullName, user.Role, "v1")
	require.NoError(t, err)

	app := newApp(userRepo)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
		body   string
	}{
		{"missing header", "/me", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "/me", "Basic " + token, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "/me", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"valid", "/me", "Bearer " + token, http.StatusOK, "customer:" + user.ID.String()},
		{"customer on admin route", "/admin", "Bearer " + token, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.path, tt.auth)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)
		})
	}

	// role is read from the store, not the token
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("role", model.RoleAdmin).Error)
	status, _ := call(t, app, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, status)

	require.NoError(t, userRepo.UpdateTokenVersion(context.Background(), user.ID, "v2"))
	status, body := call(t, app, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)
	status, body = call(t, app, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "USER_INACTIVE", body)
}
