package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo stores metadata for an evidence photo attached to a finding.
// The binary lives in external storage; StorageKey is its handle.
type Photo struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FindingID        uuid.UUID `gorm:"column:finding_id;type:uuid;not null;index"`
	StorageKey       string    `gorm:"column:storage_key;type:text;not null"`
	OriginalFilename *string   `gorm:"column:original_filename;type:text"`
	MimeType         *string   `gorm:"column:mime_type;type:text"`
	SizeBytes        *int64    `gorm:"column:size_bytes"`
	UploadedAt       time.Time `gorm:"column:uploaded_at;autoCreateTime"`
}
