package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go-loyalty-store/internal/model"
	"go-loyalty-store/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, name string) *model.User {
	t.Helper()
	u := &model.User{Email: email, FullName: name, Role: model.RoleCustomer, IsActive: true}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	return u
}

func TestDBOrderSequencer_IncrementsPerDay(t *testing.T) {
	db := newTestDB(t)
	seq := NewDBOrderSequencer(db)
	ctx := context.Background()
	day := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := seq.Next(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "a new day starts a new sequence")
}

func TestRedisOrderSequencer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	seq := NewRedisOrderSequencer(client)
	ctx := context.Background()
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	first, err := seq.Next(ctx, day)
	require.NoError(t, err)
	second, err := seq.Next(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.True(t, mr.Exists("orders:seq:250309"))
	assert.Equal(t, 48*time.Hour, mr.TTL("orders:seq:250309"))
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "dup@example.com", "First")

	dup := &model.User{Email: "dup@example.com", FullName: "Second", Password: "x"}
	err := NewUserRepo(db).Create(context.Background(), dup)

	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}

func TestUserRepo_PhoneUniqueOnlyWhenSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepo(db)

	// accounts without a phone never collide
	createUser(t, db, "a@example.com", "A")
	createUser(t, db, "b@example.com", "B")

	require.NoError(t, repo.Create(ctx, &model.User{Email: "c@example.com", FullName: "C", Phone: "0800000000", Password: "x"}))
	err := repo.Create(ctx, &model.User{Email: "d@example.com", FullName: "D", Phone: "0800000000", Password: "x"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestRewardClaimRepo_UniquePerUserTask(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "claim@example.com", "Claimer")
	repo := NewRewardClaimRepo(db)

	first := &model.RewardClaim{UserID: user.ID, TaskID: "google-review", Amount: 10, Status: model.ClaimPending, ProofType: model.ProofText, ProofText: "done"}
	require.NoError(t, repo.Create(ctx, first))

	second := &model.RewardClaim{UserID: user.ID, TaskID: "google-review", Amount: 10, Status: model.ClaimPending, ProofType: model.ProofText, ProofText: "again"}
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	found, err := repo.FindByUserAndTask(ctx, user.ID, "google-review")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestRewardTaskRepo_SeedDefaultsOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRewardTaskRepo(db)

	require.NoError(t, repo.SeedDefaults(ctx))
	require.NoError(t, repo.SeedDefaults(ctx))

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, len(model.DefaultRewardTasks))
}

func TestPointsRepo_FindAllSearchesJoinedColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRewardTaskRepo(db).SeedDefaults(ctx))

	admin := createUser(t, db, "admin@example.com", "Store Admin")
	alice := createUser(t, db, "alice@example.com", "Alice Liddell")
	bob := createUser(t, db, "bob@example.com", "Bob Builder")
	repo := NewPointsRepo(db)

	taskID := "google-review"
	rows := []*model.PointsAdjustment{
		{UserID: alice.ID, AdjustedByID: admin.ID, AdjustmentType: model.AdjustmentAdd, Points: 10, Reason: "task approved", RewardTaskID: &taskID, PreviousBalance: 0, NewBalance: 10},
		{UserID: bob.ID, AdjustedByID: admin.ID, AdjustmentType: model.AdjustmentAdd, Points: 5, Reason: "goodwill", PreviousBalance: 0, NewBalance: 5},
		{UserID: bob.ID, AdjustedByID: admin.ID, AdjustmentType: model.AdjustmentSubtract, Points: 2, Reason: "redeemed coffee", PreviousBalance: 5, NewBalance: 3},
	}
	for _, r := range rows {
		require.NoError(t, repo.Create(ctx, r))
	}

	cases := []struct {
		name   string
		filter PointsFilter
		want   int64
	}{
		{"all", PointsFilter{}, 3},
		{"by user name", PointsFilter{Search: "alice"}, 1},
		{"by email", PointsFilter{Search: "BOB@"}, 2},
		{"by task title", PointsFilter{Search: "google"}, 1},
		{"by reason", PointsFilter{Search: "coffee"}, 1},
		{"by type", PointsFilter{Type: model.AdjustmentSubtract}, 1},
		{"by user id", PointsFilter{UserID: &bob.ID}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.Page, tc.filter.Limit = 1, 20
			list, total, err := repo.FindAll(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
			assert.Len(t, list, int(tc.want))
		})
	}

	stats, err := repo.Stats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalAdjustments)
	assert.Equal(t, int64(15), stats.PointsAdded)
	assert.Equal(t, int64(2), stats.PointsSubtracted)
	assert.Equal(t, int64(13), stats.NetChange)
}

func TestPointsAdjustment_IsImmutable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "imm@example.com", "Imm")

	adj := &model.PointsAdjustment{UserID: user.ID, AdjustedByID: user.ID, AdjustmentType: model.AdjustmentAdd, Points: 1, Reason: "r", NewBalance: 1}
	require.NoError(t, NewPointsRepo(db).Create(ctx, adj))

	err := db.Model(adj).Update("points", 99).Error
	assert.ErrorIs(t, err, model.ErrAdjustmentImmutable)
}

func TestVisitorRepo_FindAllHidesArchived(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewVisitorRepo(db)

	now := time.Now().UTC()
	p1, p2 := "0811111111", "0822222222"
	active := &model.Visitor{Phone: &p1, Name: "Active"}
	active.RecordVisit(now, model.CheckInSelf, nil)
	archived := &model.Visitor{Phone: &p2, Name: "Archived"}
	archived.RecordVisit(now, model.CheckInSelf, nil)
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, archived))
	require.NoError(t, repo.SetArchived(ctx, archived.ID, true, &now))

	list, total, err := repo.FindAll(ctx, VisitorFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Active", list[0].Name)

	_, total, err = repo.FindAll(ctx, VisitorFilter{IncludeArchived: true, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	assert.ErrorIs(t, repo.SetArchived(ctx, uuid.New(), true, &now), gorm.ErrRecordNotFound)
}
