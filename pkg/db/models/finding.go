package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// Finding is a reported safety issue moving through the open -> closed lifecycle.
type Finding struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReportID       string              `gorm:"column:report_id;type:text;not null;uniqueIndex"`
	Title          string              `gorm:"type:text;not null"`
	Description    string              `gorm:"type:text;not null"`
	Severity       enums.Severity      `gorm:"column:severity;type:severity;not null"`
	Status         enums.FindingStatus `gorm:"column:status;type:finding_status;not null;default:open;index"`
	Location       *string             `gorm:"column:location;type:text"`
	AreaID         uuid.UUID           `gorm:"column:area_id;type:uuid;not null;index"`
	ReporterID     uuid.UUID           `gorm:"column:reporter_id;type:uuid;not null;index"`
	AssigneeID     *uuid.UUID          `gorm:"column:assignee_id;type:uuid;index"`
	ResolutionNote *string             `gorm:"column:resolution_note;type:text"`
	ReportedAt     time.Time           `gorm:"column:reported_at;not null"`
	ResolvedAt     *time.Time          `gorm:"column:resolved_at"`
	ClosedAt       *time.Time          `gorm:"column:closed_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
