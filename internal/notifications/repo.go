package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
)

// Repository persists notification preferences with gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	if err := r.db.WithContext(ctx).First(&settings, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert writes the row keyed on user_id, creating it on first save.
func (r *Repository) Upsert(ctx context.Context, settings *models.NotificationSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"notify_new_finding",
				"notify_status_change",
				"notify_assignment",
				"daily_summary",
				"weekly_summary",
				"daily_summary_time",
				"updated_at",
			}),
		}).
		Create(settings).Error
}

// FindManyByUserIDs returns stored settings for the given users; users with
// no row are simply absent from the result.
func (r *Repository) FindManyByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]models.NotificationSettings, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var out []models.NotificationSettings
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByFlag returns settings rows with the given boolean column enabled.
func (r *Repository) ListByFlag(ctx context.Context, column string) ([]models.NotificationSettings, error) {
	var out []models.NotificationSettings
	err := r.db.WithContext(ctx).
		Where(column+" = ?", true).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
