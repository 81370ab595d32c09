package service

import (
	"context"
	"testing"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderDay = time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)

func newOrderService(e *testEnv) OrderService {
	svc := NewOrderService(e.db, e.orders, e.products, e.users, e.moves, repository.NewDBOrderSequencer(e.db), e.events)
	svc.(*orderService).now = func() time.Time { return orderDay }
	return svc
}

func cart(lines ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{
		Items:           lines,
		ShippingAddress: model.ShippingAddress{FullName: "Jane", Line1: "1 Main St", City: "Springfield", PostalCode: "12345"},
		PaymentMethod:   "cod",
	}
}

func line(p *model.Product, qty int) OrderItemRequest {
	return OrderItemRequest{ProductID: p.ID, Quantity: qty}
}

func TestCreateOrder_TotalsAndReservation(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 5)
	b := e.product(t, "B", "5.00", 1)

	order, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 2), line(b, 1)))
	require.NoError(t, err)

	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, "ORD250309001", order.OrderNumber)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("25")), order.Subtotal.String())
	assert.True(t, order.Tax.Equal(decimal.RequireFromString("1.75")), order.Tax.String())
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("26.75")), order.TotalAmount.String())
	assert.Equal(t, "Springfield", order.ShippingAddress.Data().City)

	require.Len(t, order.Items, 2)
	assert.Equal(t, a.ID, order.Items[0].ProductID)
	assert.Equal(t, "Product A", order.Items[0].Name)
	assert.Equal(t, "/img/A.png", order.Items[0].Image)
	assert.Equal(t, 2, order.Items[0].Quantity)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, b.ID, order.Items[1].ProductID)

	assert.Equal(t, 3, e.stockOf(t, a.ID))
	assert.Equal(t, 0, e.stockOf(t, b.ID))

	reloaded, err := e.products.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.HasStock)

	var movements int64
	require.NoError(t, e.db.Model(&model.StockMovement{}).Where("order_id = ? AND type = ?", order.ID, model.MovementOut).Count(&movements).Error)
	assert.Equal(t, int64(2), movements)

	assert.Equal(t, []string{ws.EventStockUpdated, ws.EventStockUpdated, ws.EventOrderCreated}, e.events.Types())
}

func TestCreateOrder_SnapshotsSurvivePriceChange(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 5)

	order, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 1)))
	require.NoError(t, err)

	require.NoError(t, e.db.Model(&model.Product{}).Where("id = ?", a.ID).Update("price", decimal.RequireFromString("99")).Error)

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("10")))
	assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("10")))
}

func TestCreateOrder_FailureLeavesAllStockUnchanged(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 5)
	b := e.product(t, "B", "5.00", 1)

	_, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 2), line(b, 3)))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	assert.Equal(t, 5, e.stockOf(t, a.ID), "earlier reservation must roll back")
	assert.Equal(t, 1, e.stockOf(t, b.ID))

	var orders, movements int64
	require.NoError(t, e.db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, e.db.Model(&model.StockMovement{}).Count(&movements).Error)
	assert.Zero(t, orders)
	assert.Zero(t, movements)
	assert.Empty(t, e.events.Types())
}

func TestCreateOrder_RepeatedLinesShareStock(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 3)

	_, err := svc.CreateOrder(context.Background(), buyer.ID, cart(line(a, 2), line(a, 2)))
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 3, e.stockOf(t, a.ID))
}

func TestCreateOrder_Errors(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 3)

	cases := []struct {
		name   string
		userID uuid.UUID
		req    *CreateOrderRequest
		want   error
	}{
		{"empty cart", buyer.ID, cart(), apperror.ErrValidation},
		{"zero quantity", buyer.ID, cart(line(a, 0)), apperror.ErrValidation},
		{"unknown product", buyer.ID, cart(OrderItemRequest{ProductID: uuid.New(), Quantity: 1}), apperror.ErrProductNotFound},
		{"unknown user", uuid.New(), cart(line(a, 1)), apperror.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tc.userID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 3, e.stockOf(t, a.ID))
}

func TestCreateOrder_DailySequence(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "1.00", 10)

	first, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 1)))
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 1)))
	require.NoError(t, err)

	assert.Equal(t, "ORD250309001", first.OrderNumber)
	assert.Equal(t, "ORD250309002", second.OrderNumber)
}

func TestUpdateOrderStatus_StockRules(t *testing.T) {
	cases := []struct {
		name      string
		path      []model.OrderStatus
		wantStock int
	}{
		{"pending to incomplete restores", []model.OrderStatus{model.OrderIncomplete}, 5},
		{"pending to unfulfilled restores", []model.OrderStatus{model.OrderUnfulfilled}, 5},
		{"unfulfilled then incomplete restores once", []model.OrderStatus{model.OrderUnfulfilled, model.OrderIncomplete}, 5},
		{"fulfilled never touches stock", []model.OrderStatus{model.OrderFulfilled}, 3},
		{"fulfilled to incomplete does not restore", []model.OrderStatus{model.OrderFulfilled, model.OrderIncomplete}, 3},
		{"no re-reservation after revert", []model.OrderStatus{model.OrderIncomplete, model.OrderFulfilled}, 5},
		{"back to pending then revert only once", []model.OrderStatus{model.OrderUnfulfilled, model.OrderPending, model.OrderIncomplete}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			svc := newOrderService(e)
			ctx := context.Background()
			buyer := e.user(t, "buyer@example.com", "")
			a := e.product(t, "A", "10.00", 5)

			order, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 2)))
			require.NoError(t, err)

			var last *model.Order
			for _, st := range tc.path {
				last, err = svc.UpdateOrderStatus(ctx, order.ID, st, "admin")
				require.NoError(t, err)
			}
			assert.Equal(t, tc.path[len(tc.path)-1], last.Status)
			assert.Equal(t, tc.wantStock, e.stockOf(t, a.ID))
		})
	}
}

func TestUpdateOrderStatus_SkipsDeletedProduct(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "10.00", 5)
	b := e.product(t, "B", "2.00", 5)

	order, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 1), line(b, 1)))
	require.NoError(t, err)
	require.NoError(t, e.db.Delete(&model.Product{}, "id = ?", b.ID).Error)

	updated, err := svc.UpdateOrderStatus(ctx, order.ID, model.OrderIncomplete, "admin")
	require.NoError(t, err)
	assert.True(t, updated.StockReleased)
	assert.Equal(t, 5, e.stockOf(t, a.ID))
	assert.Equal(t, 4, e.stockOf(t, b.ID))
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()

	_, err := svc.UpdateOrderStatus(ctx, uuid.New(), model.OrderFulfilled, "admin")
	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)

	_, err = svc.UpdateOrderStatus(ctx, uuid.New(), model.OrderStatus("shipped"), "admin")
	assert.ErrorIs(t, err, apperror.ErrInvalidOrderStatus)
}

func TestOrderReads(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	alice := e.user(t, "alice@example.com", "")
	bob := e.user(t, "bob@example.com", "")
	a := e.product(t, "A", "1.00", 100)

	var aliceOrder *model.Order
	for i := 0; i < 3; i++ {
		o, err := svc.CreateOrder(ctx, alice.ID, cart(line(a, 1)))
		require.NoError(t, err)
		aliceOrder = o
	}
	_, err := svc.CreateOrder(ctx, bob.ID, cart(line(a, 1)))
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, aliceOrder.ID, model.OrderFulfilled, "admin")
	require.NoError(t, err)

	mine, err := svc.GetUserOrders(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	_, err = svc.GetOrderForUser(ctx, bob.ID, aliceOrder.ID)
	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)

	page, err := svc.GetAllOrders(ctx, OrderListFilter{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, model.Page{Page: 1, Limit: 3, Total: 4, TotalPages: 2}, page.Meta)

	pending := model.OrderPending
	filtered, err := svc.GetAllOrders(ctx, OrderListFilter{Status: &pending, UserID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), filtered.Meta.Total)

	bad := model.OrderStatus("bogus")
	_, err = svc.GetAllOrders(ctx, OrderListFilter{Status: &bad})
	assert.ErrorIs(t, err, apperror.ErrInvalidOrderStatus)
}

func TestDeleteOrder(t *testing.T) {
	e := newTestEnv(t)
	svc := newOrderService(e)
	ctx := context.Background()
	buyer := e.user(t, "buyer@example.com", "")
	a := e.product(t, "A", "1.00", 5)

	order, err := svc.CreateOrder(ctx, buyer.ID, cart(line(a, 2)))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(ctx, order.ID))
	_, err = svc.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)
	assert.Equal(t, 3, e.stockOf(t, a.ID), "delete does not reconcile stock")

	var items int64
	require.NoError(t, e.db.Model(&model.OrderItem{}).Where("order_id = ?", order.ID).Count(&items).Error)
	assert.Zero(t, items)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, order.ID), apperror.ErrOrderNotFound)
}
