package service

import (
	"context"
	"strings"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UserService is the admin-side account directory.
type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest, creatorID string) (*model.UserResponse, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, updaterID string) (*model.UserResponse, error)
	GetUsers(ctx context.Context, filter UserListFilter) (*UserList, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"notblank"`
	Phone    string `json:"phone" validate:"max=20"`
	Role     string `json:"role" validate:"omitempty,oneof=customer admin"`
}

type UpdateUserRequest struct {
	FullName string  `json:"full_name" validate:"notblank"`
	Phone    string  `json:"phone" validate:"max=20"`
	Role     string  `json:"role" validate:"omitempty,oneof=customer admin"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	IsActive *bool   `json:"is_active"`
}

type UserListFilter struct {
	Role   string
	Search string
	Page   int
	Limit  int
}

type UserList struct {
	Items []model.UserResponse `json:"items"`
	Meta  model.Page           `json:"meta"`
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest, creatorID string) (*model.UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate(req); err != nil {
		return nil, err
	}
	if existing, _ := s.userRepo.FindByEmail(ctx, req.Email); existing != nil {
		return nil, apperror.ErrEmailExists
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if err := phoneFree(ctx, s.userRepo, req.Phone, uuid.Nil); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleCustomer
	}
	user := &model.User{
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
		Role:     role,
		IsActive: true,
	}
	user.CreatedBy = creatorID
	user.UpdatedBy = creatorID
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, accountConflict(ctx, s.userRepo, req.Email)
		}
		return nil, errors.Wrap(err, "create user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, updaterID string) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}

	phone := strings.TrimSpace(req.Phone)
	if err := phoneFree(ctx, s.userRepo, phone, user.ID); err != nil {
		return nil, err
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Phone = phone
	if req.Role != "" {
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		user.TokenVersion = uuid.NewString()
	}
	user.UpdatedBy = updaterID

	if err := s.userRepo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperror.ErrPhoneExists
		}
		return nil, errors.Wrap(err, "update user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) GetUsers(ctx context.Context, filter UserListFilter) (*UserList, error) {
	if filter.Role != "" && !model.ValidRole(filter.Role) {
		return nil, apperror.Validation("role must be customer or admin")
	}
	page, limit := model.NormalizePage(filter.Page, filter.Limit)

	users, total, err := s.userRepo.FindAll(ctx, repository.UserFilter{
		Role:   filter.Role,
		Search: filter.Search,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	list := &UserList{Items: make([]model.UserResponse, 0, len(users)), Meta: model.NewPage(page, limit, total)}
	for _, u := range users {
		list.Items = append(list.Items, u.ToResponse())
	}
	return list, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}
	resp := user.ToResponse()
	return &resp, nil
}
