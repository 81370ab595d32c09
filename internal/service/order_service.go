package service

import (
	"context"
	"fmt"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, actor string) (*model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderForUser(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	GetAllOrders(ctx context.Context, filter OrderListFilter) (*OrderList, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest is the checkout cart. Prices are always read from the
// catalog; any price the client sends is ignored.
type CreateOrderRequest struct {
	Items           []OrderItemRequest    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method" validate:"max=30"`
	Notes           string                `json:"notes"`
}

type OrderListFilter struct {
	Status *model.OrderStatus
	UserID *uuid.UUID
	Page   int
	Limit  int
}

type OrderList struct {
	Items []model.Order `json:"items"`
	Meta  model.Page    `json:"meta"`
}

type orderService struct {
	db           *gorm.DB
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	userRepo     repository.UserRepository
	movementRepo repository.StockMovementRepository
	sequencer    repository.OrderSequencer
	events       ws.Broadcaster
	now          func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	movementRepo repository.StockMovementRepository,
	sequencer repository.OrderSequencer,
	events ws.Broadcaster,
) OrderService {
	return &orderService{
		db:           db,
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		userRepo:     userRepo,
		movementRepo: movementRepo,
		sequencer:    sequencer,
		events:       events,
		now:          time.Now,
	}
}

type stockChange struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	OldStock  int       `json:"old_stock"`
	NewStock  int       `json:"new_stock"`
	HasStock  bool      `json:"has_stock"`
}

// CreateOrder reserves stock for every line and persists the order in one
// transaction. If any line fails, no product's stock changes.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*model.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	order := &model.Order{
		UserID:          userID,
		Status:          model.OrderPending,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ShippingAddress: datatypes.NewJSONType(req.ShippingAddress),
	}
	order.ID = uuid.New()
	order.CreatedBy = userID.String()
	order.UpdatedBy = userID.String()

	var changes []stockChange

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.WithTx(tx).FindByID(ctx, userID); err != nil {
			return lookupErr(err, apperror.ErrUserNotFound, "find user")
		}

		products := s.productRepo.WithTx(tx)
		movements := s.movementRepo.WithTx(tx)
		var pending []model.StockMovement

		for i, line := range req.Items {
			product, err := products.FindByIDForUpdate(ctx, line.ProductID)
			if err != nil {
				return lookupErr(err, apperror.ErrProductNotFound.WithDetails(line.ProductID.String()), "lock product")
			}
			if product.Stock < line.Quantity {
				return apperror.ErrInsufficientStock.WithDetails(
					fmt.Sprintf("%s: requested %d, available %d", product.Name, line.Quantity, product.Stock))
			}

			oldStock := product.Stock
			product.SetStock(oldStock - line.Quantity)
			if err := products.UpdateStock(ctx, product.ID, product.Stock, order.CreatedBy); err != nil {
				return errors.Wrap(err, "decrement stock")
			}

			order.Items = append(order.Items, model.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
				Quantity:  line.Quantity,
				Image:     product.PrimaryImage(),
				Position:  i,
			})
			pending = append(pending, model.StockMovement{
				ProductID:  product.ID,
				OrderID:    &order.ID,
				Type:       model.MovementOut,
				Quantity:   line.Quantity,
				StockAfter: product.Stock,
				Reason:     model.ReasonReservation,
			})
			changes = append(changes, stockChange{
				ProductID: product.ID,
				Name:      product.Name,
				OldStock:  oldStock,
				NewStock:  product.Stock,
				HasStock:  product.HasStock,
			})
		}

		seq, err := s.sequencer.WithTx(tx).Next(ctx, now)
		if err != nil {
			return errors.Wrap(err, "next order number")
		}
		order.OrderNumber = model.FormatOrderNumber(now, seq)
		order.ApplyTotals()

		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return errors.Wrap(err, "create order")
		}

		for i := range pending {
			pending[i].CreatedBy = order.CreatedBy
			pending[i].UpdatedBy = order.CreatedBy
			if err := movements.Create(ctx, &pending[i]); err != nil {
				return errors.Wrap(err, "record stock movement")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	created, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}

	s.publishStock("order_reserved", order, changes)
	s.events.Publish(ws.EventOrderCreated, map[string]interface{}{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"user_id":      created.UserID,
		"total_amount": created.TotalAmount,
	})
	return created, nil
}

// UpdateOrderStatus moves the order to status. Stock comes back only when the
// order leaves a stock-holding status for a releasing one and has not been
// released before.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, actor string) (*model.Order, error) {
	if !status.Valid() {
		return nil, apperror.ErrInvalidOrderStatus.WithDetails(string(status))
	}

	var (
		previous model.OrderStatus
		changes  []stockChange
		order    *model.Order
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return lookupErr(err, apperror.ErrOrderNotFound, "lock order")
		}
		previous = order.Status

		release := status.ReleasesStock() && previous.HoldsStock() && !order.StockReleased
		if release {
			changes, err = s.restoreStock(ctx, tx, order, actor)
			if err != nil {
				return err
			}
		}

		released := order.StockReleased || release
		if err := s.orderRepo.WithTx(tx).UpdateStatus(ctx, order.ID, status, released, actor); err != nil {
			return errors.Wrap(err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}

	logger.Info("order status updated",
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Int("products_restored", len(changes)),
	)

	if len(changes) > 0 {
		s.publishStock("order_reverted", updated, changes)
	}
	s.events.Publish(ws.EventOrderStatusChanged, map[string]interface{}{
		"order_id":        updated.ID,
		"order_number":    updated.OrderNumber,
		"previous_status": previous,
		"status":          updated.Status,
	})
	return updated, nil
}

func (s *orderService) restoreStock(ctx context.Context, tx *gorm.DB, order *model.Order, actor string) ([]stockChange, error) {
	products := s.productRepo.WithTx(tx)
	movements := s.movementRepo.WithTx(tx)

	var changes []stockChange
	for _, item := range order.Items {
		product, err := products.FindByIDForUpdate(ctx, item.ProductID)
		if repository.IsNotFound(err) {
			logger.Warn("skipping stock restore for missing product",
				zap.String("order_number", order.OrderNumber),
				zap.String("product_id", item.ProductID.String()),
			)
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "lock product")
		}

		oldStock := product.Stock
		product.SetStock(oldStock + item.Quantity)
		if err := products.UpdateStock(ctx, product.ID, product.Stock, actor); err != nil {
			return nil, errors.Wrap(err, "restore stock")
		}

		movement := &model.StockMovement{
			ProductID:  product.ID,
			OrderID:    &order.ID,
			Type:       model.MovementIn,
			Quantity:   item.Quantity,
			StockAfter: product.Stock,
			Reason:     model.ReasonRevert,
		}
		movement.CreatedBy = actor
		movement.UpdatedBy = actor
		if err := movements.Create(ctx, movement); err != nil {
			return nil, errors.Wrap(err, "record stock movement")
		}

		changes = append(changes, stockChange{
			ProductID: product.ID,
			Name:      product.Name,
			OldStock:  oldStock,
			NewStock:  product.Stock,
			HasStock:  product.HasStock,
		})
	}
	return changes, nil
}

func (s *orderService) publishStock(action string, order *model.Order, changes []stockChange) {
	for _, c := range changes {
		s.events.Publish(ws.EventStockUpdated, map[string]interface{}{
			"action":       action,
			"order_number": order.OrderNumber,
			"product":      c,
			"message":      fmt.Sprintf("'%s' stock %d -> %d (%s)", c.Name, c.OldStock, c.NewStock, order.OrderNumber),
		})
	}
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrOrderNotFound, "find order")
	}
	return order, nil
}

// GetOrderForUser hides other users' orders behind the same not-found error.
func (s *orderService) GetOrderForUser(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperror.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return orders, nil
}

func (s *orderService) GetAllOrders(ctx context.Context, filter OrderListFilter) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperror.ErrInvalidOrderStatus.WithDetails(string(*filter.Status))
	}
	page, limit := model.NormalizePage(filter.Page, filter.Limit)

	orders, total, err := s.orderRepo.FindAll(ctx, repository.OrderFilter{
		Status: filter.Status,
		UserID: filter.UserID,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &OrderList{Items: orders, Meta: model.NewPage(page, limit, total)}, nil
}

// DeleteOrder removes the order and its items. Stock is not reconciled.
func (s *orderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return lookupErr(err, apperror.ErrOrderNotFound, "delete order")
	}
	logger.Warn("order deleted", zap.String("order_id", id.String()))
	return nil
}
