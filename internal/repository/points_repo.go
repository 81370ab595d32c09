package repository

import (
	"context"
	"strings"
	"time"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PointsRepository interface {
	WithTx(tx *gorm.DB) PointsRepository
	Create(ctx context.Context, adj *model.PointsAdjustment) error
	FindAll(ctx context.Context, filter PointsFilter) ([]model.PointsAdjustment, int64, error)
	Stats(ctx context.Context, from, to *time.Time) (*PointsStats, error)
}

type PointsFilter struct {
	UserID *uuid.UUID
	Type   model.AdjustmentType
	From   *time.Time
	To     *time.Time
	Search string
	Page   int
	Limit  int
}

type PointsStats struct {
	TotalAdjustments int64 `json:"total_adjustments"`
	PointsAdded      int64 `json:"points_added"`
	PointsSubtracted int64 `json:"points_subtracted"`
	NetChange        int64 `json:"net_change"`
}

type pointsRepo struct {
	db *gorm.DB
}

func NewPointsRepo(db *gorm.DB) PointsRepository {
	return &pointsRepo{db}
}

func (r *pointsRepo) WithTx(tx *gorm.DB) PointsRepository {
	return &pointsRepo{tx}
}

func (r *pointsRepo) Create(ctx context.Context, adj *model.PointsAdjustment) error {
	return r.db.WithContext(ctx).Omit("User", "AdjustedBy", "RewardTask").Create(adj).Error
}

// FindAll filters in SQL, including the free-text search over reason, notes,
// the user's name and email, and the linked task title.
func (r *pointsRepo) FindAll(ctx context.Context, filter PointsFilter) ([]model.PointsAdjustment, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Joins("LEFT JOIN users ON users.id = points_adjustments.user_id").
			Joins("LEFT JOIN reward_tasks ON reward_tasks.id = points_adjustments.reward_task_id")
		if filter.UserID != nil {
			db = db.Where("points_adjustments.user_id = ?", *filter.UserID)
		}
		if filter.Type != "" {
			db = db.Where("points_adjustments.adjustment_type = ?", filter.Type)
		}
		if filter.From != nil {
			db = db.Where("points_adjustments.created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("points_adjustments.created_at <= ?", *filter.To)
		}
		if q := strings.TrimSpace(filter.Search); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			db = db.Where(
				"LOWER(points_adjustments.reason) LIKE ? OR LOWER(points_adjustments.notes) LIKE ? OR "+
					"LOWER(users.full_name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(reward_tasks.title) LIKE ?",
				like, like, like, like, like,
			)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.PointsAdjustment{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.PointsAdjustment
	err := r.db.WithContext(ctx).Model(&model.PointsAdjustment{}).Scopes(scope).
		Select("points_adjustments.*").
		Preload("User").
		Preload("AdjustedBy").
		Preload("RewardTask").
		Order("points_adjustments.created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&list).Error
	return list, total, err
}

func (r *pointsRepo) Stats(ctx context.Context, from, to *time.Time) (*PointsStats, error) {
	var row struct {
		Total      int64
		Added      int64
		Subtracted int64
	}
	q := r.db.WithContext(ctx).Model(&model.PointsAdjustment{}).Select(
		"COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN adjustment_type = 'add' THEN points ELSE 0 END), 0) AS added, " +
			"COALESCE(SUM(CASE WHEN adjustment_type = 'subtract' THEN points ELSE 0 END), 0) AS subtracted")
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	if err := q.Scan(&row).Error; err != nil {
		return nil, err
	}
	return &PointsStats{
		TotalAdjustments: row.Total,
		PointsAdded:      row.Added,
		PointsSubtracted: row.Subtracted,
		NetChange:        row.Added - row.Subtracted,
	}, nil
}
