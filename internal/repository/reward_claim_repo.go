package repository

import (
	"context"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardClaimRepository interface {
	WithTx(tx *gorm.DB) RewardClaimRepository
	Create(ctx context.Context, claim *model.RewardClaim) error
	Update(ctx context.Context, claim *model.RewardClaim) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error)
	FindByUserAndTask(ctx context.Context, userID uuid.UUID, taskID string) (*model.RewardClaim, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]model.RewardClaim, error)
	FindAll(ctx context.Context, filter ClaimFilter) ([]model.RewardClaim, int64, error)
	ApprovedTaskIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type ClaimFilter struct {
	Status *model.ClaimStatus
	UserID *uuid.UUID
	TaskID string
	Page   int
	Limit  int
}

type rewardClaimRepo struct {
	db *gorm.DB
}

func NewRewardClaimRepo(db *gorm.DB) RewardClaimRepository {
	return &rewardClaimRepo{db}
}

func (r *rewardClaimRepo) WithTx(tx *gorm.DB) RewardClaimRepository {
	return &rewardClaimRepo{tx}
}

// Create relies on the (user_id, task_id) unique index; callers map a
// violation to an already-claimed error.
func (r *rewardClaimRepo) Create(ctx context.Context, claim *model.RewardClaim) error {
	return r.db.WithContext(ctx).Omit("User").Create(claim).Error
}

func (r *rewardClaimRepo) Update(ctx context.Context, claim *model.RewardClaim) error {
	return r.db.WithContext(ctx).Omit("User").Save(claim).Error
}

func (r *rewardClaimRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error) {
	var claim model.RewardClaim
	if err := r.db.WithContext(ctx).Preload("User").First(&claim, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *rewardClaimRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error) {
	var claim model.RewardClaim
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&claim, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *rewardClaimRepo) FindByUserAndTask(ctx context.Context, userID uuid.UUID, taskID string) (*model.RewardClaim, error) {
	var claim model.RewardClaim
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *rewardClaimRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.RewardClaim, error) {
	var claims []model.RewardClaim
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&claims).Error
	return claims, err
}

func (r *rewardClaimRepo) FindAll(ctx context.Context, filter ClaimFilter) ([]model.RewardClaim, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.UserID != nil {
			db = db.Where("user_id = ?", *filter.UserID)
		}
		if filter.TaskID != "" {
			db = db.Where("task_id = ?", filter.TaskID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.RewardClaim{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var claims []model.RewardClaim
	err := r.db.WithContext(ctx).Preload("User").Scopes(scope).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&claims).Error
	return claims, total, err
}

func (r *rewardClaimRepo) ApprovedTaskIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.RewardClaim{}).
		Where("user_id = ? AND status = ?", userID, model.ClaimApproved).
		Pluck("task_id", &ids).Error
	return ids, err
}
