package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/pagination"
	"github.com/safetrackhq/safetrack-backend/pkg/security"
)

const tempPasswordLength = 16

type usersRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, role *string, isActive *bool, offset, limit int) ([]models.User, int64, error)
	Save(ctx context.Context, user *models.User) error
}

// Service manages user accounts.
type Service interface {
	List(ctx context.Context, params ListUsersParams) (*pagination.Page[UserDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	Create(ctx context.Context, input CreateUserInput) (*CreateUserResult, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	Activate(ctx context.Context, id uuid.UUID) (*UserDTO, error)
}

type service struct {
	repo        usersRepository
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

func NewService(repo usersRepository, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg, logg: logg}, nil
}

func (s *service) List(ctx context.Context, params ListUsersParams) (*pagination.Page[UserDTO], error) {
	page := params.Page.Normalize()

	var role *string
	if params.Role != nil {
		if !params.Role.IsValid() {
			// Unknown filter values match nothing rather than erroring.
			empty := pagination.NewPage([]UserDTO{}, 0, page)
			return &empty, nil
		}
		value := params.Role.String()
		role = &value
	}

	rows, total, err := s.repo.List(ctx, role, params.IsActive, page.Offset(), page.Limit())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing users")
	}

	items := make([]UserDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *fromModel(&rows[i]))
	}
	result := pagination.NewPage(items, total, page)
	return &result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	return fromModel(user), nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*CreateUserResult, error) {
	staffID := strings.TrimSpace(input.StaffID)
	if staffID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff_id is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
	}
	role := input.Role
	if role == "" {
		role = enums.RoleReporter
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}

	var tempPassword *string
	password := input.Password
	if password == nil && role.IsElevated() {
		// Elevated accounts log in with staff_id/password, so provision one.
		generated, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating temporary password")
		}
		password = &generated
		tempPassword = &generated
	}

	user := &models.User{
		ID:         uuid.New(),
		TelegramID: input.TelegramID,
		StaffID:    &staffID,
		Username:   input.Username,
		FullName:   fullName,
		Department: input.Department,
		Section:    input.Section,
		Role:       role,
		IsActive:   true,
	}

	if password != nil {
		if len(*password) < 8 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
		}
		hash, err := security.HashPassword(*password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
		}
		user.PasswordHash = &hash
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "staff_id already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating user")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": user.ID.String(),
		"role":    user.Role.String(),
	}), "user created")

	return &CreateUserResult{User: fromModel(user), TempPassword: tempPassword}, nil
}

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	if input.FullName != nil {
		fullName := strings.TrimSpace(*input.FullName)
		if fullName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
		}
		user.FullName = fullName
	}
	if input.Department != nil {
		user.Department = input.Department
	}
	if input.Section != nil {
		user.Section = input.Section
	}
	if input.Username != nil {
		user.Username = input.Username
	}
	if input.TelegramID != nil {
		user.TelegramID = input.TelegramID
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		if !*input.IsActive && actorID == id {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot deactivate your own account")
		}
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
		}
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
		}
		user.PasswordHash = &hash
	}

	if err := s.repo.Save(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "conflicting unique user field")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating user")
	}

	s.logg.Info(s.logg.WithField(ctx, "user_id", user.ID.String()), "user updated")
	return fromModel(user), nil
}

func (s *service) Activate(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	if !user.IsActive {
		user.IsActive = true
		if err := s.repo.Save(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activating user")
		}
		s.logg.Info(s.logg.WithField(ctx, "user_id", user.ID.String()), "user activated")
	}
	return fromModel(user), nil
}
