package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a storefront account. RewardPoints is the live ledger balance.
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Password     string `gorm:"type:varchar(255);not null" json:"-"` // Hidden from JSON
	FullName     string `gorm:"type:varchar(255)" json:"full_name" validate:"required"`
	Phone        string `gorm:"type:varchar(20);index:idx_users_phone_unique,unique,where:phone <> ''" json:"phone"`
	Role         string `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	RewardPoints int    `gorm:"not null;default:0" json:"reward_points"`
	TokenVersion string `gorm:"type:varchar(255);default:''" json:"-"` // For single session enforcement
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserResponse is used for API responses (without sensitive data)
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	RewardPoints int       `json:"reward_points"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		Role:         u.Role,
		IsActive:     u.IsActive,
		RewardPoints: u.RewardPoints,
		CreatedAt:    u.CreatedAt,
	}
}
