package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/internal/users"
	pkgauth "github.com/safetrackhq/safetrack-backend/pkg/auth"
	"github.com/safetrackhq/safetrack-backend/pkg/auth/session"
	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/security"
)

type authRepository interface {
	FindByStaffID(ctx context.Context, staffID string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

type sessionRegistry interface {
	Register(ctx context.Context, accessID string) error
	Revoke(ctx context.Context, accessID string) error
}

// LoginResult is the response body for a successful login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        *users.UserDTO `json:"user"`
}

// Service owns the credential boundary: password login, logout, and the
// current-user lookup.
type Service interface {
	Login(ctx context.Context, staffID, password string) (*LoginResult, error)
	Logout(ctx context.Context, accessID string) error
	Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type service struct {
	repo     authRepository
	sessions sessionRegistry
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
}

func NewService(repo authRepository, sessions sessionRegistry, jwtCfg config.JWTConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("auth repository is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, sessions: sessions, jwtCfg: jwtCfg, logg: logg}, nil
}

var errInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

func (s *service) Login(ctx context.Context, staffID, password string) (*LoginResult, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff_id and password are required")
	}

	user, err := s.repo.FindByStaffID(ctx, staffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	// Deactivated and password-less accounts fail exactly like a bad
	// password, so probes learn nothing.
	if !user.IsActive || user.PasswordHash == nil {
		return nil, errInvalidCredentials
	}
	ok, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	accessID := session.NewAccessID()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	if err := s.sessions.Register(ctx, accessID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "registering session")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		// Last-login is informational; the login itself already succeeded.
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "updating last_login_at failed")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user logged in")

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserDTO(user),
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	s.logg.Info(ctx, "session revoked")
	return nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	return toUserDTO(user), nil
}

func toUserDTO(m *models.User) *users.UserDTO {
	return &users.UserDTO{
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
