package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	"github.com/safetrackhq/safetrack-backend/pkg/pagination"
)

// UserDTO is the transport shape for an account. Password hashes never leave
// the service.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	TelegramID  *int64     `json:"telegram_id,omitempty"`
	StaffID     *string    `json:"staff_id,omitempty"`
	Username    *string    `json:"username,omitempty"`
	FullName    string     `json:"full_name"`
	Department  *string    `json:"department,omitempty"`
	Section     *string    `json:"section,omitempty"`
	Role        enums.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserInput holds the fields accepted when provisioning an account.
type CreateUserInput struct {
	StaffID    string
	FullName   string
	Department *string
	Section    *string
	Username   *string
	TelegramID *int64
	Role       enums.Role
	Password   *string
}

// CreateUserResult carries the created account plus a one-time temporary
// password when none was supplied for an elevated role.
type CreateUserResult struct {
	User         *UserDTO `json:"user"`
	TempPassword *string  `json:"temp_password,omitempty"`
}

// UpdateUserInput holds the mutable account fields. StaffID is immutable
// after creation and deliberately absent.
type UpdateUserInput struct {
	FullName   *string
	Department *string
	Section    *string
	Username   *string
	TelegramID *int64
	Role       *enums.Role
	Password   *string
	IsActive   *bool
}

// ListUsersParams filters the paged account listing.
type ListUsersParams struct {
	Role     *enums.Role
	IsActive *bool
	Page     pagination.Params
}

func fromModel(m *models.User) *UserDTO {
	if m == nil {
		return nil
	}
	return &UserDTO{
		ID:          m.ID,
		TelegramID:  m.TelegramID,
		StaffID:     m.StaffID,
		Username:    m.Username,
		FullName:    m.FullName,
		Department:  m.Department,
		Section:     m.Section,
		Role:        m.Role,
		IsActive:    m.IsActive,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
