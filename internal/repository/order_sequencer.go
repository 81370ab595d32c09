package repository

import (
	"context"
	"fmt"
	"time"

	"go-loyalty-store/internal/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderSequencer hands out the daily sequence embedded in order numbers.
// Each call returns a value no other caller received for that day.
type OrderSequencer interface {
	WithTx(tx *gorm.DB) OrderSequencer
	Next(ctx context.Context, day time.Time) (int64, error)
}

func dayKey(day time.Time) string {
	return day.Format("060102")
}

// dbSequencer keeps one counter row per day and bumps it with an upsert, so
// concurrent checkouts serialize on that row instead of counting orders.
type dbSequencer struct {
	db *gorm.DB
}

func NewDBOrderSequencer(db *gorm.DB) OrderSequencer {
	return &dbSequencer{db}
}

func (s *dbSequencer) WithTx(tx *gorm.DB) OrderSequencer {
	return &dbSequencer{tx}
}

func (s *dbSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	seq := model.OrderSequence{Day: dayKey(day), Value: 1}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("order_sequences.value + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}

	var current model.OrderSequence
	if err := s.db.WithContext(ctx).First(&current, "day = ?", seq.Day).Error; err != nil {
		return 0, err
	}
	return current.Value, nil
}

// redisSequencer uses INCR on a per-day key; the key expires after two days.
type redisSequencer struct {
	client *redis.Client
	prefix string
}

func NewRedisOrderSequencer(client *redis.Client) OrderSequencer {
	return &redisSequencer{client: client, prefix: "orders:seq:"}
}

// WithTx is a no-op: the counter lives outside the database, so a rolled back
// checkout leaves a gap in the sequence rather than a duplicate.
func (s *redisSequencer) WithTx(tx *gorm.DB) OrderSequencer {
	return s
}

func (s *redisSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	key := fmt.Sprintf("%s%s", s.prefix, dayKey(day))

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
