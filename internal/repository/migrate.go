package repository

import (
	"go-loyalty-store/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderSequence{},
		&model.StockMovement{},
		&model.RewardTask{},
		&model.RewardClaim{},
		&model.PointsAdjustment{},
		&model.Visitor{},
	)
}
