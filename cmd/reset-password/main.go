package main

import (
	"context"
	"flag"
	"os"

	"go-loyalty-store/internal/repository"
	"go-loyalty-store/pkg/config"
	"go-loyalty-store/pkg/database"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	email := flag.String("email", cfg.AdminEmail, "account to reset")
	password := flag.String("password", cfg.AdminPassword, "new password")
	flag.Parse()

	if err := logger.Init("info", true); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 1. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepo(db)

	// 2. Find user
	user, err := userRepo.FindByEmail(ctx, *email)
	if err != nil {
		logger.Error("User not found", zap.String("email", *email), zap.Error(err))
		os.Exit(1)
	}

	// 3. Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Failed to hash password", zap.Error(err))
		os.Exit(1)
	}

	// 4. Update and drop existing sessions
	if err := userRepo.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		logger.Error("Failed to update password", zap.Error(err))
		os.Exit(1)
	}
	if err := userRepo.UpdateTokenVersion(ctx, user.ID, uuid.NewString()); err != nil {
		logger.Error("Failed to revoke sessions", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Password reset", zap.String("email", *email))
}
