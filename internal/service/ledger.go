package service

import (
	"context"
	"math"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ledgerEntry describes one balance mutation and its audit row.
type ledgerEntry struct {
	UserID        uuid.UUID
	AdjustedByID  uuid.UUID
	Type          model.AdjustmentType
	Points        int
	Reason        string
	Notes         string
	RewardTaskID  *string
	RewardClaimID *uuid.UUID
}

// ledger is the only writer of User.RewardPoints. Manual adjustments and
// claim approvals both post through it.
type ledger struct {
	userRepo   repository.UserRepository
	pointsRepo repository.PointsRepository
}

// post must run inside tx. It locks the user row, so concurrent posts for
// the same user serialize and previous/new balances always chain.
func (l *ledger) post(ctx context.Context, tx *gorm.DB, e ledgerEntry) (*model.PointsAdjustment, *model.User, error) {
	users := l.userRepo.WithTx(tx)

	user, err := users.FindByIDForUpdate(ctx, e.UserID)
	if err != nil {
		return nil, nil, lookupErr(err, apperror.ErrUserNotFound, "lock user")
	}

	previous := user.RewardPoints
	if e.Type == model.AdjustmentAdd && e.Points > math.MaxInt-previous {
		return nil, nil, apperror.ErrValidation.WithDetails("balance would overflow")
	}
	next := model.ApplyAdjustment(previous, e.Type, e.Points)

	if err := users.UpdateRewardPoints(ctx, user.ID, next); err != nil {
		return nil, nil, errors.Wrap(err, "update balance")
	}

	adj := &model.PointsAdjustment{
		UserID:          user.ID,
		AdjustedByID:    e.AdjustedByID,
		AdjustmentType:  e.Type,
		Points:          e.Points,
		Reason:          e.Reason,
		Notes:           e.Notes,
		RewardTaskID:    e.RewardTaskID,
		RewardClaimID:   e.RewardClaimID,
		PreviousBalance: previous,
		NewBalance:      next,
	}
	if err := l.pointsRepo.WithTx(tx).Create(ctx, adj); err != nil {
		return nil, nil, errors.Wrap(err, "record adjustment")
	}

	user.RewardPoints = next
	return adj, user, nil
}
