package repository

import (
	"context"

	"go-loyalty-store/internal/model"

	"gorm.io/gorm"
)

type RewardTaskRepository interface {
	FindAll(ctx context.Context) ([]model.RewardTask, error)
	FindByID(ctx context.Context, id string) (*model.RewardTask, error)
	SeedDefaults(ctx context.Context) error
}

type rewardTaskRepo struct {
	db *gorm.DB
}

func NewRewardTaskRepo(db *gorm.DB) RewardTaskRepository {
	return &rewardTaskRepo{db}
}

func (r *rewardTaskRepo) FindAll(ctx context.Context) ([]model.RewardTask, error) {
	var tasks []model.RewardTask
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tasks).Error
	return tasks, err
}

func (r *rewardTaskRepo) FindByID(ctx context.Context, id string) (*model.RewardTask, error) {
	var task model.RewardTask
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// SeedDefaults creates default tasks only when the table is empty, so admin
// edits and removals survive restarts.
func (r *rewardTaskRepo) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.RewardTask{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range model.DefaultRewardTasks {
		task := t
		if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
			return err
		}
	}
	return nil
}
