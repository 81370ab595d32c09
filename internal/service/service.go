// Package service holds the storefront business rules. Every operation that
// touches more than one row runs inside a single database transaction.
package service

import (
	"context"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/pkg/validator"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func validate(req interface{}) error {
	if msg := validator.FirstError(req); msg != "" {
		return apperror.ErrValidation.WithDetails(msg)
	}
	return nil
}

// lookupErr turns a missing row into notFound and wraps anything else.
func lookupErr(err error, notFound *apperror.Error, op string) error {
	if repository.IsNotFound(err) {
		return notFound
	}
	return errors.Wrap(err, op)
}

// phoneFree fails with ErrPhoneExists when phone belongs to a user other than self.
func phoneFree(ctx context.Context, users repository.UserRepository, phone string, self uuid.UUID) error {
	if phone == "" {
		return nil
	}
	other, err := users.FindByPhone(ctx, phone)
	switch {
	case repository.IsNotFound(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "find user by phone")
	case other.ID != self:
		return apperror.ErrPhoneExists
	}
	return nil
}

// accountConflict names the column behind a unique violation on a new account.
func accountConflict(ctx context.Context, users repository.UserRepository, email string) error {
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return apperror.ErrEmailExists
	}
	return apperror.ErrPhoneExists
}
