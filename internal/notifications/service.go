package notifications

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/internal/access"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

var summaryTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type settingsRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.NotificationSettings, error)
	Upsert(ctx context.Context, settings *models.NotificationSettings) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service manages per-user notification preferences and the test delivery.
type Service interface {
	GetSettings(ctx context.Context, actor access.Identity, userID uuid.UUID) (*SettingsDTO, error)
	UpdateSettings(ctx context.Context, actor access.Identity, userID uuid.UUID, input UpdateSettingsInput) (*SettingsDTO, error)
	SendTest(ctx context.Context, actor access.Identity) error
}

type service struct {
	repo   settingsRepository
	users  userReader
	sender MessageSender
	logg   *logger.Logger
}

func NewService(repo settingsRepository, users userReader, sender MessageSender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, users: users, sender: sender, logg: logg}, nil
}

// guardOwnership allows the owner and elevated roles through; everyone else
// is refused without confirming the target exists.
func guardOwnership(actor access.Identity, userID uuid.UUID) error {
	if !actor.IsActive {
		return pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted")
	}
	if actor.UserID == userID || actor.Role.IsElevated() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (s *service) GetSettings(ctx context.Context, actor access.Identity, userID uuid.UUID) (*SettingsDTO, error) {
	if err := guardOwnership(actor, userID); err != nil {
		return nil, err
	}

	settings, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fromModel(defaultSettings(userID)), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading notification settings")
	}
	return fromModel(settings), nil
}

func (s *service) UpdateSettings(ctx context.Context, actor access.Identity, userID uuid.UUID, input UpdateSettingsInput) (*SettingsDTO, error) {
	if err := guardOwnership(actor, userID); err != nil {
		return nil, err
	}

	settings, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading notification settings")
		}
		settings = defaultSettings(userID)
		settings.ID = uuid.New()
	}

	if input.NewFinding != nil {
		settings.NewFinding = *input.NewFinding
	}
	if input.StatusChange != nil {
		settings.StatusChange = *input.StatusChange
	}
	if input.Assignment != nil {
		settings.Assignment = *input.Assignment
	}
	if input.DailySummary != nil {
		settings.DailySummary = *input.DailySummary
	}
	if input.WeeklySummary != nil {
		settings.WeeklySummary = *input.WeeklySummary
	}
	if input.DailySummaryTime != nil {
		if !summaryTimePattern.MatchString(*input.DailySummaryTime) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily_summary_time must be HH:MM")
		}
		settings.DailySummaryTime = *input.DailySummaryTime
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving notification settings")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "notification settings updated")
	return fromModel(settings), nil
}

func (s *service) SendTest(ctx context.Context, actor access.Identity) error {
	if !actor.IsActive {
		return pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted")
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	if user.TelegramID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "no telegram account linked")
	}

	if err := s.sender.SendMessage(ctx, *user.TelegramID, "SafeTrack test notification. You are set up."); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending test message")
	}
	return nil
}
