package repository

import (
	"context"
	"strings"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
	UpdateRewardPoints(ctx context.Context, userID uuid.UUID, balance int) error
	UpdateTokenVersion(ctx context.Context, userID uuid.UUID, version string) error
	BalanceSummary(ctx context.Context) (*BalanceSummary, error)
	FindAll(ctx context.Context, filter UserFilter) ([]model.User, int64, error)
}

type UserFilter struct {
	Role   string
	Search string
	Page   int
	Limit  int
}

// BalanceSummary aggregates the live reward balances.
type BalanceSummary struct {
	UsersWithPoints int64 `json:"users_with_points"`
	TotalBalance    int64 `json:"total_balance"`
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) WithTx(tx *gorm.DB) UserRepository {
	return &userRepo{tx}
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate locks the user row until the surrounding transaction ends.
func (r *userRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

func (r *userRepo) UpdateRewardPoints(ctx context.Context, userID uuid.UUID, balance int) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("reward_points", balance).Error
}

func (r *userRepo) UpdateTokenVersion(ctx context.Context, userID uuid.UUID, version string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("token_version", version).Error
}

func (r *userRepo) BalanceSummary(ctx context.Context) (*BalanceSummary, error) {
	var summary BalanceSummary
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Select("COUNT(CASE WHEN reward_points > 0 THEN 1 END) AS users_with_points, COALESCE(SUM(reward_points), 0) AS total_balance").
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *userRepo) FindAll(ctx context.Context, filter UserFilter) ([]model.User, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if q := strings.TrimSpace(filter.Search); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			db = db.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, "%"+q+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := r.db.WithContext(ctx).Scopes(scope).
		Order("full_name ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&users).Error
	return users, total, err
}
