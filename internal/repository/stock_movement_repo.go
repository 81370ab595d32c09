package repository

import (
	"context"
	"time"

	"go-loyalty-store/internal/model"

	"gorm.io/gorm"
)

type StockMovementRepository interface {
	WithTx(tx *gorm.DB) StockMovementRepository
	Create(ctx context.Context, movement *model.StockMovement) error
	FindRecent(ctx context.Context, limit int) ([]model.StockMovement, error)
	GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

// StockMovementData is one point of the stock chart.
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats is the catalog overview.
type DashboardStats struct {
	TotalProducts  int64   `json:"total_products"`
	LowStockCount  int64   `json:"low_stock_count"`
	OutOfStock     int64   `json:"out_of_stock_count"`
	TotalValuation float64 `json:"total_valuation"`
	// filled from the order repository
	PendingOrders    int64 `json:"pending_orders"`
	IncompleteOrders int64 `json:"incomplete_orders"`
}

const lowStockThreshold = 10

type stockMovementRepo struct {
	db *gorm.DB
}

func NewStockMovementRepo(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db}
}

func (r *stockMovementRepo) WithTx(tx *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{tx}
}

func (r *stockMovementRepo) Create(ctx context.Context, movement *model.StockMovement) error {
	return r.db.WithContext(ctx).Omit("Product").Create(movement).Error
}

func (r *stockMovementRepo) FindRecent(ctx context.Context, limit int) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.WithContext(ctx).
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error
	return movements, err
}

func (r *stockMovementRepo) GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	rows, err := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN type = 'IN' THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = 'OUT' THEN quantity ELSE 0 END), 0) as outbound
		`).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}
	return results, rows.Err()
}

func (r *stockMovementRepo) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).Where("stock < ?", lowStockThreshold).Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).Where("stock = 0").Count(&stats.OutOfStock).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).Select("COALESCE(SUM(stock * price), 0)").Scan(&stats.TotalValuation).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
