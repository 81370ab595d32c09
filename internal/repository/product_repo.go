package repository

import (
	"context"
	"time"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	UpdateStock(ctx context.Context, id uuid.UUID, newStock int, updatedBy string) error
	DeleteByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

type ProductFilter struct {
	CategoryID  *uuid.UUID
	InStockOnly bool
	Search      string
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{tx}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	var products []model.Product
	query := r.db.WithContext(ctx).Preload("Category")
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.InStockOnly {
		query = query.Where("stock > 0")
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(sku) LIKE LOWER(?)", like, like)
	}
	err := query.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate locks the product row (pessimistic locking) for the
// rest of the transaction.
func (r *productRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

// UpdateStock is meant to run on a repository bound to a transaction via WithTx.
func (r *productRepo) UpdateStock(ctx context.Context, id uuid.UUID, newStock int, updatedBy string) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      newStock,
			"updated_by": updatedBy,
		}).Error
}

// DeleteByCategory soft-deletes the category's products and detaches them so
// the category row itself can be removed. Order items keep pointing at them.
func (r *productRepo) DeleteByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("category_id = ?", categoryID).
		Updates(map[string]interface{}{
			"deleted_at":  time.Now(),
			"category_id": nil,
		})
	return result.RowsAffected, result.Error
}
