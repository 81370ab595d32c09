package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdjustmentType string

const (
	AdjustmentAdd      AdjustmentType = "add"
	AdjustmentSubtract AdjustmentType = "subtract"
)

var ErrAdjustmentImmutable = errors.New("points adjustments are immutable")

// PointsAdjustment is the audit row written with every balance change.
type PointsAdjustment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *User          `json:"user,omitempty"`
	AdjustedByID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"adjusted_by"`
	AdjustedBy     *User          `json:"adjusted_by_user,omitempty"`
	AdjustmentType AdjustmentType `gorm:"type:varchar(10);not null;index" json:"adjustment_type"`
	Points         int            `gorm:"not null" json:"points"`
	Reason         string         `gorm:"type:text;not null" json:"reason"`

	RewardTaskID  *string     `gorm:"type:varchar(64);index" json:"reward_task_id,omitempty"`
	RewardTask    *RewardTask `json:"reward_task,omitempty"`
	RewardClaimID *uuid.UUID  `gorm:"type:uuid" json:"reward_claim_id,omitempty"`
	Notes         string      `gorm:"type:text" json:"notes,omitempty"`

	PreviousBalance int       `gorm:"not null" json:"previous_balance"`
	NewBalance      int       `gorm:"not null" json:"new_balance"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

func (a *PointsAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *PointsAdjustment) BeforeUpdate(tx *gorm.DB) error {
	return ErrAdjustmentImmutable
}

// ApplyAdjustment returns the balance after applying points; subtraction floors at zero.
func ApplyAdjustment(previous int, kind AdjustmentType, points int) int {
	if kind == AdjustmentSubtract {
		next := previous - points
		if next < 0 {
			return 0
		}
		return next
	}
	return previous + points
}
