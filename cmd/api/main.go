package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-loyalty-store/internal/handler"
	"go-loyalty-store/internal/middleware"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/service"
	"go-loyalty-store/internal/storage"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/cache"
	"go-loyalty-store/pkg/config"
	"go-loyalty-store/pkg/database"
	"go-loyalty-store/pkg/jwt"
	"go-loyalty-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// maxUploadBytes bounds request bodies; video proofs are the largest payload.
const maxUploadBytes = 50 << 20

func main() {
	// 1. Load config
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.LogDevelopment); err != nil {
		panic(err)
	}
	defer logger.Sync()

	jwt.Configure(cfg.JWTSecret, cfg.JWTTTL)

	ctx := context.Background()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Error("Failed to migrate database", zap.Error(err))
		os.Exit(1)
	}

	// 3. Repositories and seed data
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	movementRepo := repository.NewStockMovementRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	taskRepo := repository.NewRewardTaskRepo(db)
	claimRepo := repository.NewRewardClaimRepo(db)
	pointsRepo := repository.NewPointsRepo(db)
	visitorRepo := repository.NewVisitorRepo(db)

	seedAdmin(ctx, userRepo, cfg)

	catalog, err := service.LoadTaskCatalog(ctx, taskRepo, cfg.CompletionBonus)
	if err != nil {
		logger.Error("Failed to load reward tasks", zap.Error(err))
		os.Exit(1)
	}

	sequencer := repository.NewDBOrderSequencer(db)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to redis", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		sequencer = repository.NewRedisOrderSequencer(client)
		logger.Info("Order numbers issued from redis")
	}

	proofs, err := storage.OpenProofStore(ctx, cfg.BlobURL, cfg.BlobPublicBaseURL)
	if err != nil {
		logger.Error("Failed to open proof storage", zap.Error(err), zap.String("url", cfg.BlobURL))
		os.Exit(1)
	}
	defer proofs.Close()

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	// 5. Dependency Injection (Wiring Layers)
	authService := service.NewAuthService(userRepo)
	catalogService := service.NewCatalogService(db, productRepo, categoryRepo, movementRepo, wsHub)
	orderService := service.NewOrderService(db, orderRepo, productRepo, userRepo, movementRepo, sequencer, wsHub)
	rewardService := service.NewRewardService(db, catalog, claimRepo, userRepo, pointsRepo, proofs, wsHub)
	pointsService := service.NewPointsService(db, userRepo, pointsRepo, taskRepo, wsHub)
	visitorService := service.NewVisitorService(db, visitorRepo, userRepo, wsHub)
	dashService := service.NewDashboardService(movementRepo, orderRepo)
	userService := service.NewUserService(userRepo)

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Catalog:   handler.NewCatalogHandler(catalogService),
		Order:     handler.NewOrderHandler(orderService),
		Reward:    handler.NewRewardHandler(rewardService),
		Points:    handler.NewPointsHandler(pointsService),
		Visitor:   handler.NewVisitorHandler(visitorService),
		Dashboard: handler.NewDashboardHandler(dashService),
		User:      handler.NewUserHandler(userService),
		Upload:    handler.NewUploadHandler(proofs),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		BodyLimit:    maxUploadBytes,
		ErrorHandler: handler.ErrorHandler,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger())
	app.Use(recover.New())
	app.Use(cors.New())

	// 7. Routes
	handler.RegisterRoutes(app, handlers, middleware.RequireAuth(userRepo), ws.RequireUpgrade, wsHub.Handler())

	// 8. Graceful Shutdown
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// seedAdmin creates the default admin account if it does not exist yet.
func seedAdmin(ctx context.Context, userRepo repository.UserRepository, cfg *config.Config) {
	if _, err := userRepo.FindByEmail(ctx, cfg.AdminEmail); err == nil {
		return
	}

	admin := &model.User{
		Email:    cfg.AdminEmail,
		FullName: "Store Administrator",
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		logger.Warn("Failed to hash admin password", zap.Error(err))
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		logger.Warn("Failed to create admin user", zap.Error(err))
		return
	}
	logger.Info("Admin user created", zap.String("email", cfg.AdminEmail))
}
