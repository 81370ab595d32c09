package service

import (
	"context"
	"fmt"
	"testing"

	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/storage"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	events   *ws.Recorder
	users    repository.UserRepository
	products repository.ProductRepository
	cats     repository.CategoryRepository
	orders   repository.OrderRepository
	moves    repository.StockMovementRepository
	tasks    repository.RewardTaskRepository
	claims   repository.RewardClaimRepository
	points   repository.PointsRepository
	visitors repository.VisitorRepository
	proofs   storage.ProofStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	proofs, err := storage.NewMemoryStore(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = proofs.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testEnv{
		db:       db,
		events:   &ws.Recorder{},
		users:    repository.NewUserRepo(db),
		products: repository.NewProductRepo(db),
		cats:     repository.NewCategoryRepo(db),
		orders:   repository.NewOrderRepo(db),
		moves:    repository.NewStockMovementRepo(db),
		tasks:    repository.NewRewardTaskRepo(db),
		claims:   repository.NewRewardClaimRepo(db),
		points:   repository.NewPointsRepo(db),
		visitors: repository.NewVisitorRepo(db),
		proofs:   proofs,
	}
}

func (e *testEnv) user(t *testing.T, email, phone string) *model.User {
	t.Helper()
	u := &model.User{Email: email, FullName: "User " + email, Phone: phone, Role: model.RoleCustomer, IsActive: true}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) admin(t *testing.T) *model.User {
	t.Helper()
	u := &model.User{Email: "admin@example.com", FullName: "Admin", Role: model.RoleAdmin, IsActive: true}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) product(t *testing.T, sku, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), Images: []string{"/img/" + sku + ".png"}}
	p.SetStock(stock)
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.Unscoped().First(&p, "id = ?", id).Error)
	return p.Stock
}

func (e *testEnv) balanceOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	u, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u.RewardPoints
}
