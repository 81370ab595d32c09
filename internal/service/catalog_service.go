package service

import (
	"context"
	"fmt"
	"strings"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CatalogService interface {
	CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error)
	GetProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	CreateCategory(ctx context.Context, req *CategoryRequest, actor Actor) (*model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID, actor Actor) (int64, error)
}

// Actor identifies who performed an admin action, for audit fields and events.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ProductRequest struct {
	SKU         string          `json:"sku" validate:"notblank,max=50"`
	Name        string          `json:"name" validate:"notblank,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"min=0"`
	Unit        string          `json:"unit" validate:"max=20"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	Images      []string        `json:"images"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description"`
}

type catalogService struct {
	db           *gorm.DB
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	movementRepo repository.StockMovementRepository
	events       ws.Broadcaster
}

func NewCatalogService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	movementRepo repository.StockMovementRepository,
	events ws.Broadcaster,
) CatalogService {
	return &catalogService{
		db:           db,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		movementRepo: movementRepo,
		events:       events,
	}
}

func (s *catalogService) validateProduct(ctx context.Context, req *ProductRequest) error {
	if err := validate(req); err != nil {
		return err
	}
	if req.Price.IsNegative() {
		return apperror.Validation("price must not be negative")
	}
	if req.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *req.CategoryID); err != nil {
			return lookupErr(err, apperror.ErrCategoryNotFound, "find category")
		}
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := s.validateProduct(ctx, req); err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(req.SKU)
	if existing, err := s.productRepo.FindBySKU(ctx, sku); err == nil && existing.ID != uuid.Nil {
		return nil, apperror.ErrSKUExists
	}

	product := &model.Product{
		SKU:         sku,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price.Round(2),
		Unit:        req.Unit,
		CategoryID:  req.CategoryID,
		Images:      datatypes.JSONSlice[string](req.Images),
	}
	product.SetStock(req.Stock)
	product.CreatedBy = actor.ID
	product.UpdatedBy = actor.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.productRepo.WithTx(tx).Create(ctx, product); err != nil {
			return err
		}
		if product.Stock == 0 {
			return nil
		}
		return s.recordRestock(ctx, tx, product, product.Stock, actor)
	})
	if repository.IsUniqueViolation(err) {
		return nil, apperror.ErrSKUExists
	}
	if err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	s.publishProduct("product_created", product, 0, actor)
	return product, nil
}

// UpdateProduct replaces the editable fields. A stock change is logged as a
// restock movement in the same transaction.
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := s.validateProduct(ctx, req); err != nil {
		return nil, err
	}

	var (
		product  *model.Product
		oldStock int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := s.productRepo.WithTx(tx)

		var err error
		product, err = products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, apperror.ErrProductNotFound, "lock product")
		}
		oldStock = product.Stock

		product.SKU = strings.TrimSpace(req.SKU)
		product.Name = strings.TrimSpace(req.Name)
		product.Description = req.Description
		product.Price = req.Price.Round(2)
		product.Unit = req.Unit
		product.CategoryID = req.CategoryID
		product.Images = datatypes.JSONSlice[string](req.Images)
		product.SetStock(req.Stock)
		product.UpdatedBy = actor.ID

		if err := products.Update(ctx, product); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperror.ErrSKUExists
			}
			return errors.Wrap(err, "update product")
		}
		if delta := product.Stock - oldStock; delta != 0 {
			return s.recordRestock(ctx, tx, product, delta, actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishProduct("product_updated", product, oldStock, actor)
	return s.GetProduct(ctx, id)
}

func (s *catalogService) recordRestock(ctx context.Context, tx *gorm.DB, product *model.Product, delta int, actor Actor) error {
	movement := &model.StockMovement{
		ProductID:  product.ID,
		Type:       model.MovementIn,
		Quantity:   delta,
		StockAfter: product.Stock,
		Reason:     model.ReasonRestock,
	}
	if delta < 0 {
		movement.Type = model.MovementOut
		movement.Quantity = -delta
	}
	movement.CreatedBy = actor.ID
	movement.UpdatedBy = actor.ID
	return errors.Wrap(s.movementRepo.WithTx(tx).Create(ctx, movement), "record stock movement")
}

func (s *catalogService) publishProduct(action string, p *model.Product, oldStock int, actor Actor) {
	s.events.Publish(ws.EventStockUpdated, map[string]interface{}{
		"action": action,
		"product": map[string]interface{}{
			"id":        p.ID,
			"sku":       p.SKU,
			"name":      p.Name,
			"old_stock": oldStock,
			"new_stock": p.Stock,
			"has_stock": p.HasStock,
			"price":     p.Price,
		},
		"user":    actor,
		"message": fmt.Sprintf("%s %s '%s'", actor.Name, strings.ReplaceAll(action, "_", " "), p.Name),
	})
}

func (s *catalogService) GetProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	products, err := s.productRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrProductNotFound, "find product")
	}
	return product, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, req *CategoryRequest, actor Actor) (*model.Category, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	category := &model.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	category.CreatedBy = actor.ID
	category.UpdatedBy = actor.ID

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperror.ErrCategoryExists
		}
		return nil, errors.Wrap(err, "create category")
	}
	return category, nil
}

func (s *catalogService) GetCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// DeleteCategory removes the category and soft-deletes its products together.
// It returns how many products went with it.
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID, actor Actor) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := s.categoryRepo.WithTx(tx)
		if _, err := categories.FindByID(ctx, id); err != nil {
			return lookupErr(err, apperror.ErrCategoryNotFound, "find category")
		}

		var err error
		removed, err = s.productRepo.WithTx(tx).DeleteByCategory(ctx, id)
		if err != nil {
			return errors.Wrap(err, "delete category products")
		}
		return errors.Wrap(categories.Delete(ctx, id), "delete category")
	})
	if err != nil {
		return 0, err
	}

	logger.Info("category deleted",
		zap.String("category_id", id.String()),
		zap.Int64("products_removed", removed),
		zap.String("actor", actor.ID),
	)
	return removed, nil
}
