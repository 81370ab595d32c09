package service

import (
	"context"
	"testing"

	"go-loyalty-store/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	env.product(t, "A", "10", 5)
	env.product(t, "B", "2.5", 20)
	env.product(t, "C", "1", 0)

	svc := NewDashboardService(env.moves, env.orders)
	stats, err := svc.GetDashboardStats(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalProducts)
	assert.EqualValues(t, 2, stats.LowStockCount)
	assert.EqualValues(t, 1, stats.OutOfStock)
	assert.InDelta(t, 100.0, stats.TotalValuation, 0.001)
	assert.EqualValues(t, 0, stats.PendingOrders)
	assert.EqualValues(t, 0, stats.IncompleteOrders)
}

func TestDashboardStats_OrderCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orders := newOrderService(env)
	buyer := env.user(t, "buyer@example.com", "")
	a := env.product(t, "A", "10", 50)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		o, err := orders.CreateOrder(ctx, buyer.ID, cart(line(a, 1)))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := orders.UpdateOrderStatus(ctx, ids[0], model.OrderIncomplete, "admin")
	require.NoError(t, err)
	_, err = orders.UpdateOrderStatus(ctx, ids[1], model.OrderFulfilled, "admin")
	require.NoError(t, err)

	stats, err := NewDashboardService(env.moves, env.orders).GetDashboardStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingOrders)
	assert.EqualValues(t, 1, stats.IncompleteOrders)
}
