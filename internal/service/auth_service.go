package service

import (
	"context"
	"strings"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/pkg/jwt"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"notblank"`
	Phone    string `json:"phone" validate:"max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

// Register creates a customer account and logs it in.
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate(req); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperror.ErrEmailExists
	}
	if err := phoneFree(ctx, s.userRepo, req.Phone, uuid.Nil); err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    req.Phone,
		Role:     model.RoleCustomer,
		IsActive: true,
	}
	user.CreatedBy = "self"
	user.UpdatedBy = "self"
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, accountConflict(ctx, s.userRepo, req.Email)
		}
		return nil, errors.Wrap(err, "create user")
	}
	logger.Info("user registered", zap.String("user_id", user.ID.String()))

	return s.issue(ctx, user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := &LoginRequest{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}
	if !user.IsActive {
		return nil, apperror.ErrUserInactive
	}
	if !user.CheckPassword(req.Password) {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// issue rotates the token version, which invalidates tokens from earlier logins.
func (s *authService) issue(ctx context.Context, user *model.User) (*LoginResponse, error) {
	version := uuid.NewString()
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, version); err != nil {
		return nil, errors.Wrap(err, "update session")
	}
	user.TokenVersion = version

	token, err := jwt.GenerateToken(user.ID, user.Email, user.FullName, user.Role, version)
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}
	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return lookupErr(err, apperror.ErrUserNotFound, "find user")
	}
	if !user.CheckPassword(req.OldPassword) {
		return apperror.ErrInvalidCredentials.WithDetails("current password is incorrect")
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return errors.Wrap(err, "update password")
	}
	// other sessions must log in again
	return errors.Wrap(s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.NewString()), "rotate session")
}
