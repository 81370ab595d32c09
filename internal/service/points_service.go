package service

import (
	"context"
	"strings"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PointsService interface {
	AdjustUserPoints(ctx context.Context, req *AdjustPointsRequest) (*AdjustmentResult, error)
	GetUserPointsHistory(ctx context.Context, userID uuid.UUID, filter PointsHistoryFilter) (*PointsHistory, error)
	GetAllPointsAdjustments(ctx context.Context, filter PointsHistoryFilter) (*PointsHistory, error)
	GetPointsStats(ctx context.Context) (*PointsStats, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
}

type AdjustPointsRequest struct {
	UserID         uuid.UUID            `json:"-" validate:"uuid_required"`
	AdjustedBy     uuid.UUID            `json:"-" validate:"uuid_required"`
	AdjustmentType model.AdjustmentType `json:"adjustment_type" validate:"required,oneof=add subtract"`
	Points         int                  `json:"points" validate:"required,gt=0,max=1000000"`
	Reason         string               `json:"reason" validate:"notblank,max=500"`
	RewardTaskID   string               `json:"reward_task_id"`
	Notes          string               `json:"notes"`
}

type AdjustmentResult struct {
	Adjustment      *model.PointsAdjustment `json:"adjustment"`
	PreviousBalance int                     `json:"previous_balance"`
	NewBalance      int                     `json:"new_balance"`
	User            model.UserResponse      `json:"user"`
}

type PointsHistoryFilter struct {
	UserID *uuid.UUID
	Type   model.AdjustmentType
	From   *time.Time
	To     *time.Time
	Search string
	Page   int
	Limit  int
}

type PointsHistory struct {
	Items []model.PointsAdjustment `json:"items"`
	Meta  model.Page               `json:"meta"`
}

type PointsStats struct {
	repository.PointsStats
	repository.BalanceSummary
}

type Balance struct {
	UserID       uuid.UUID `json:"user_id"`
	RewardPoints int       `json:"reward_points"`
}

type pointsService struct {
	db         *gorm.DB
	ledger     *ledger
	userRepo   repository.UserRepository
	pointsRepo repository.PointsRepository
	taskRepo   repository.RewardTaskRepository
	events     ws.Broadcaster
}

func NewPointsService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	pointsRepo repository.PointsRepository,
	taskRepo repository.RewardTaskRepository,
	events ws.Broadcaster,
) PointsService {
	return &pointsService{
		db:         db,
		ledger:     &ledger{userRepo: userRepo, pointsRepo: pointsRepo},
		userRepo:   userRepo,
		pointsRepo: pointsRepo,
		taskRepo:   taskRepo,
		events:     events,
	}
}

func (s *pointsService) AdjustUserPoints(ctx context.Context, req *AdjustPointsRequest) (*AdjustmentResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	entry := ledgerEntry{
		UserID:       req.UserID,
		AdjustedByID: req.AdjustedBy,
		Type:         req.AdjustmentType,
		Points:       req.Points,
		Reason:       strings.TrimSpace(req.Reason),
		Notes:        req.Notes,
	}
	if taskID := strings.TrimSpace(req.RewardTaskID); taskID != "" {
		if _, err := s.taskRepo.FindByID(ctx, taskID); err != nil {
			return nil, lookupErr(err, apperror.ErrUnknownTask.WithDetails(taskID), "find reward task")
		}
		entry.RewardTaskID = &taskID
	}

	var (
		adj  *model.PointsAdjustment
		user *model.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		adj, user, err = s.ledger.post(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("points adjusted",
		zap.String("user_id", user.ID.String()),
		zap.String("type", string(adj.AdjustmentType)),
		zap.Int("points", adj.Points),
		zap.Int("previous_balance", adj.PreviousBalance),
		zap.Int("new_balance", adj.NewBalance),
	)
	s.events.Publish(ws.EventPointsAdjusted, map[string]interface{}{
		"user_id":          user.ID,
		"adjustment_type":  adj.AdjustmentType,
		"points":           adj.Points,
		"previous_balance": adj.PreviousBalance,
		"new_balance":      adj.NewBalance,
	})

	return &AdjustmentResult{
		Adjustment:      adj,
		PreviousBalance: adj.PreviousBalance,
		NewBalance:      adj.NewBalance,
		User:            user.ToResponse(),
	}, nil
}

func (s *pointsService) GetUserPointsHistory(ctx context.Context, userID uuid.UUID, filter PointsHistoryFilter) (*PointsHistory, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}
	filter.UserID = &userID
	return s.GetAllPointsAdjustments(ctx, filter)
}

func (s *pointsService) GetAllPointsAdjustments(ctx context.Context, filter PointsHistoryFilter) (*PointsHistory, error) {
	if filter.Type != "" && filter.Type != model.AdjustmentAdd && filter.Type != model.AdjustmentSubtract {
		return nil, apperror.Validation("adjustment type must be add or subtract")
	}
	page, limit := model.NormalizePage(filter.Page, filter.Limit)

	items, total, err := s.pointsRepo.FindAll(ctx, repository.PointsFilter{
		UserID: filter.UserID,
		Type:   filter.Type,
		From:   filter.From,
		To:     filter.To,
		Search: filter.Search,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list adjustments")
	}
	return &PointsHistory{Items: items, Meta: model.NewPage(page, limit, total)}, nil
}

func (s *pointsService) GetPointsStats(ctx context.Context) (*PointsStats, error) {
	adjustments, err := s.pointsRepo.Stats(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "adjustment stats")
	}
	balances, err := s.userRepo.BalanceSummary(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "balance summary")
	}
	return &PointsStats{PointsStats: *adjustments, BalanceSummary: *balances}, nil
}

func (s *pointsService) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}
	return &Balance{UserID: user.ID, RewardPoints: user.RewardPoints}, nil
}
