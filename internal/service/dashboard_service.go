package service

import (
	"context"
	"time"

	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"

	"github.com/pkg/errors"
)

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
}

type dashboardService struct {
	movementRepo repository.StockMovementRepository
	orderRepo    repository.OrderRepository
}

func NewDashboardService(movementRepo repository.StockMovementRepository, orderRepo repository.OrderRepository) DashboardService {
	return &dashboardService{movementRepo: movementRepo, orderRepo: orderRepo}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 || days > 365 {
		days = 7
	}
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)

	data, err := s.movementRepo.GetStockMovement(ctx, startDate, endDate)
	return data, errors.Wrap(err, "stock movement")
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	stats, err := s.movementRepo.GetDashboardStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dashboard stats")
	}
	if stats.PendingOrders, err = s.orderRepo.CountByStatus(ctx, model.OrderPending); err != nil {
		return nil, errors.Wrap(err, "count pending orders")
	}
	if stats.IncompleteOrders, err = s.orderRepo.CountByStatus(ctx, model.OrderIncomplete); err != nil {
		return nil, errors.Wrap(err, "count incomplete orders")
	}
	return stats, nil
}
