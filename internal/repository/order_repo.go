package repository

import (
	"context"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, stockReleased bool, updatedBy string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, status model.OrderStatus) (int64, error)
}

type OrderFilter struct {
	Status *model.OrderStatus
	UserID *uuid.UUID
	Page   int
	Limit  int
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

func (r *orderRepo) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepo{tx}
}

// Create inserts the order together with its items.
func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepo) populated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.populated(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("position ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	err := r.populated(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.UserID != nil {
			db = db.Where("user_id = ?", *filter.UserID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.Order
	err := r.populated(ctx).Scopes(scope).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, stockReleased bool, updatedBy string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"stock_released": stockReleased,
			"updated_by":     updatedBy,
		}).Error
}

// Delete hard-deletes the order and its items.
func (r *orderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		result := tx.Unscoped().Delete(&model.Order{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *orderRepo) CountByStatus(ctx context.Context, status model.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
