package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// StatusHistory is an append-only record of a finding's lifecycle transitions.
// The row written at creation time has a nil FromStatus.
type StatusHistory struct {
	ID         uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FindingID  uuid.UUID            `gorm:"column:finding_id;type:uuid;not null;index"`
	FromStatus *enums.FindingStatus `gorm:"column:from_status;type:finding_status"`
	ToStatus   enums.FindingStatus  `gorm:"column:to_status;type:finding_status;not null"`
	Event      *string              `gorm:"column:event;type:text"`
	ActorID    uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	Note       *string              `gorm:"column:note;type:text"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the plural-breaking table name.
func (StatusHistory) TableName() string {
	return "status_history"
}
