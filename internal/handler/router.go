package handler

import (
	"go-loyalty-store/internal/middleware"
	"go-loyalty-store/internal/model"

	"github.com/gofiber/fiber/v2"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Auth      *AuthHandler
	Catalog   *CatalogHandler
	Order     *OrderHandler
	Reward    *RewardHandler
	Points    *PointsHandler
	Visitor   *VisitorHandler
	Dashboard *DashboardHandler
	User      *UserHandler
	Upload    *UploadHandler
}

// RegisterRoutes mounts the API under /api. requireAuth is the session
// middleware; socket, when non-nil, is served at /ws.
func RegisterRoutes(app *fiber.App, h Handlers, requireAuth fiber.Handler, upgrade, socket fiber.Handler) {
	admin := middleware.RequireRole(model.RoleAdmin)

	api := app.Group("/api")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Get("/me", requireAuth, h.Auth.Me)
	auth.Put("/password", requireAuth, h.Auth.ChangePassword)

	api.Get("/products", h.Catalog.GetProducts)
	api.Get("/products/:id", h.Catalog.GetProduct)
	api.Get("/categories", h.Catalog.GetCategories)

	api.Post("/visitors/checkin", h.Visitor.CheckIn)

	// ============ CUSTOMER ROUTES ============
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", h.Order.CreateOrder)
	orders.Get("/", h.Order.GetMyOrders)
	orders.Get("/:id", h.Order.GetMyOrder)

	rewards := api.Group("/rewards", requireAuth)
	rewards.Get("/tasks", h.Reward.GetTasks)
	rewards.Post("/claim", h.Reward.SubmitClaim)
	rewards.Get("/my-claims", h.Reward.GetMyClaims)
	rewards.Get("/admin/requests", admin, h.Reward.GetAllClaims)
	rewards.Get("/admin/requests/:id", admin, h.Reward.GetClaim)
	rewards.Put("/admin/requests/:id", admin, h.Reward.ReviewClaim)

	points := api.Group("/points", requireAuth)
	points.Get("/me", h.Points.GetMyBalance)
	points.Get("/history", h.Points.GetMyHistory)
	points.Post("/admin/adjust/:userId", admin, h.Points.AdjustPoints)
	points.Get("/admin/history", admin, h.Points.GetAllHistory)
	points.Get("/admin/users/:userId/history", admin, h.Points.GetUserHistory)
	points.Get("/admin/stats", admin, h.Points.GetStats)

	// ============ ADMIN ROUTES ============
	adm := api.Group("/admin", requireAuth, admin)

	adm.Post("/products", h.Catalog.CreateProduct)
	adm.Put("/products/:id", h.Catalog.UpdateProduct)
	adm.Post("/categories", h.Catalog.CreateCategory)
	adm.Delete("/categories/:id", h.Catalog.DeleteCategory)

	adm.Get("/orders", h.Order.GetAllOrders)
	adm.Get("/orders/:id", h.Order.GetOrder)
	adm.Put("/orders/:id/status", h.Order.UpdateOrderStatus)
	adm.Delete("/orders/:id", h.Order.DeleteOrder)

	adm.Get("/visitors", h.Visitor.GetVisitors)
	adm.Get("/visitors/:id", h.Visitor.GetVisitor)
	adm.Post("/visitors/checkin/:userId", h.Visitor.AdminCheckIn)
	adm.Put("/visitors/:id/archive", h.Visitor.Archive)
	adm.Put("/visitors/:id/unarchive", h.Visitor.Unarchive)

	adm.Get("/dashboard/stats", h.Dashboard.GetDashboardStats)
	adm.Get("/dashboard/stock-movement", h.Dashboard.GetStockMovement)

	adm.Get("/users", h.User.GetUsers)
	adm.Get("/users/:id", h.User.GetUser)
	adm.Post("/users", h.User.CreateUser)
	adm.Put("/users/:id", h.User.UpdateUser)

	if h.Upload != nil {
		app.Get("/uploads/*", h.Upload.GetProof)
	}

	// WebSocket Route
	if socket != nil {
		app.Use("/ws", upgrade)
		app.Get("/ws", socket)
	}
}
