package repository

import (
	"context"
	"strings"
	"time"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VisitorRepository interface {
	WithTx(tx *gorm.DB) VisitorRepository
	Create(ctx context.Context, v *model.Visitor) error
	Save(ctx context.Context, v *model.Visitor) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Visitor, error)
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*model.Visitor, error)
	FindByPhoneForUpdate(ctx context.Context, phone string) (*model.Visitor, error)
	FindAll(ctx context.Context, filter VisitorFilter) ([]model.Visitor, int64, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool, at *time.Time) error
}

type VisitorFilter struct {
	IncludeArchived bool
	ArchivedOnly    bool
	MembersOnly     bool
	Search          string
	Page            int
	Limit           int
}

type visitorRepo struct {
	db *gorm.DB
}

func NewVisitorRepo(db *gorm.DB) VisitorRepository {
	return &visitorRepo{db}
}

func (r *visitorRepo) WithTx(tx *gorm.DB) VisitorRepository {
	return &visitorRepo{tx}
}

func (r *visitorRepo) Create(ctx context.Context, v *model.Visitor) error {
	return r.db.WithContext(ctx).Omit("User").Create(v).Error
}

func (r *visitorRepo) Save(ctx context.Context, v *model.Visitor) error {
	return r.db.WithContext(ctx).Omit("User").Save(v).Error
}

func (r *visitorRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Visitor, error) {
	var v model.Visitor
	if err := r.db.WithContext(ctx).Preload("User").First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *visitorRepo) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*model.Visitor, error) {
	var v model.Visitor
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *visitorRepo) FindByPhoneForUpdate(ctx context.Context, phone string) (*model.Visitor, error) {
	var v model.Visitor
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone = ?", phone).
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *visitorRepo) FindAll(ctx context.Context, filter VisitorFilter) ([]model.Visitor, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		switch {
		case filter.ArchivedOnly:
			db = db.Where("is_archived = ?", true)
		case !filter.IncludeArchived:
			// rows written before the archive flag existed carry NULL
			db = db.Where("is_archived = ? OR is_archived IS NULL", false)
		}
		if filter.MembersOnly {
			db = db.Where("is_member = ?", true)
		}
		if q := strings.TrimSpace(filter.Search); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			db = db.Where("LOWER(name) LIKE ? OR phone LIKE ?", like, "%"+q+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Visitor{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Visitor
	err := r.db.WithContext(ctx).Scopes(scope).
		Order("last_visit DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&list).Error
	return list, total, err
}

func (r *visitorRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool, at *time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Visitor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_archived": archived, "archived_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
