package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
)

// SettingsDTO is the transport shape for a user's notification preferences.
type SettingsDTO struct {
	UserID           uuid.UUID `json:"user_id"`
	NewFinding       bool      `json:"new_finding"`
	StatusChange     bool      `json:"status_change"`
	Assignment       bool      `json:"assignment"`
	DailySummary     bool      `json:"daily_summary"`
	WeeklySummary    bool      `json:"weekly_summary"`
	DailySummaryTime string    `json:"daily_summary_time"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpdateSettingsInput carries partial preference updates; nil fields keep
// their stored value.
type UpdateSettingsInput struct {
	NewFinding       *bool
	StatusChange     *bool
	Assignment       *bool
	DailySummary     *bool
	WeeklySummary    *bool
	DailySummaryTime *string
}

func fromModel(m *models.NotificationSettings) *SettingsDTO {
	if m == nil {
		return nil
	}
	return &SettingsDTO{
		UserID:           m.UserID,
		NewFinding:       m.NewFinding,
		StatusChange:     m.StatusChange,
		Assignment:       m.Assignment,
		DailySummary:     m.DailySummary,
		WeeklySummary:    m.WeeklySummary,
		DailySummaryTime: m.DailySummaryTime,
		UpdatedAt:        m.UpdatedAt,
	}
}

// defaultSettings mirrors the column defaults, applied when a user has no
// stored row yet.
func defaultSettings(userID uuid.UUID) *models.NotificationSettings {
	return &models.NotificationSettings{
		UserID:           userID,
		NewFinding:       true,
		StatusChange:     true,
		Assignment:       true,
		DailySummary:     false,
		WeeklySummary:    true,
		DailySummaryTime: "09:00",
	}
}
