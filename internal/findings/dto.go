package findings

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	"github.com/safetrackhq/safetrack-backend/pkg/pagination"
)

// UserRef is the embedded shape for reporter and assignee.
type UserRef struct {
	ID       uuid.UUID  `json:"id"`
	FullName string     `json:"full_name"`
	Role     enums.Role `json:"role"`
}

// AreaRef is the embedded shape for the finding's area.
type AreaRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PhotoDTO is the metadata for one attached evidence photo.
type PhotoDTO struct {
	ID               uuid.UUID `json:"id"`
	StorageKey       string    `json:"storage_key"`
	OriginalFilename *string   `json:"original_filename,omitempty"`
	MimeType         *string   `json:"mime_type,omitempty"`
	SizeBytes        *int64    `json:"size_bytes,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// StatusHistoryDTO is one append-only lifecycle entry.
type StatusHistoryDTO struct {
	ID         uuid.UUID            `json:"id"`
	FromStatus *enums.FindingStatus `json:"from_status,omitempty"`
	ToStatus   enums.FindingStatus  `json:"to_status"`
	Event      *string              `json:"event,omitempty"`
	ActorID    uuid.UUID            `json:"actor_id"`
	Note       *string              `json:"note,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// FindingDTO is the transport shape for a finding, optionally nested with
// reporter, assignee, area, photos, and ordered status history.
type FindingDTO struct {
	ID             uuid.UUID           `json:"id"`
	ReportID       string              `json:"report_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Severity       enums.Severity      `json:"severity"`
	Status         enums.FindingStatus `json:"status"`
	Location       *string             `json:"location,omitempty"`
	AreaID         uuid.UUID           `json:"area_id"`
	Area           *AreaRef            `json:"area,omitempty"`
	ReporterID     uuid.UUID           `json:"reporter_id"`
	Reporter       *UserRef            `json:"reporter,omitempty"`
	AssigneeID     *uuid.UUID          `json:"assignee_id,omitempty"`
	Assignee       *UserRef            `json:"assignee,omitempty"`
	ResolutionNote *string             `json:"resolution_note,omitempty"`
	ReportedAt     time.Time           `json:"reported_at"`
	ResolvedAt     *time.Time          `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time          `json:"closed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Photos         []PhotoDTO          `json:"photos,omitempty"`
	StatusHistory  []StatusHistoryDTO  `json:"status_history,omitempty"`
}

// PhotoInput is photo metadata supplied at creation or appended later.
type PhotoInput struct {
	StorageKey       string
	OriginalFilename *string
	MimeType         *string
	SizeBytes        *int64
}

// CreateFindingInput holds the fields accepted when reporting a finding.
type CreateFindingInput struct {
	Title       string
	Description string
	Severity    enums.Severity
	Location    *string
	AreaID      uuid.UUID
	ReportedAt  *time.Time
	Photos      []PhotoInput
}

// TransitionInput carries the requested target status; the service derives
// the lifecycle event from it.
type TransitionInput struct {
	TargetStatus enums.FindingStatus
	Note         *string
}

// ListFindingsParams filters the paged listing. Severity and status stay raw
// strings so unknown values yield empty results instead of errors.
type ListFindingsParams struct {
	AreaID     *uuid.UUID
	Severity   *string
	Status     *string
	DateFrom   *time.Time
	DateTo     *time.Time
	ReporterID *uuid.UUID
	AssigneeID *uuid.UUID
	Page       pagination.Params
}

// SummaryBucket is one aggregate row with its share of the total.
type SummaryBucket struct {
	Key     string  `json:"key"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// SummaryReport aggregates findings over an optional date window.
type SummaryReport struct {
	Total      int64           `json:"total"`
	DateFrom   *time.Time      `json:"date_from,omitempty"`
	DateTo     *time.Time      `json:"date_to,omitempty"`
	BySeverity []SummaryBucket `json:"by_severity"`
	ByStatus   []SummaryBucket `json:"by_status"`
	ByArea     []SummaryBucket `json:"by_area"`
}

func fromModel(m *models.Finding) *FindingDTO {
	if m == nil {
		return nil
	}
	return &FindingDTO{
		ID:             m.ID,
		ReportID:       m.ReportID,
		Title:          m.Title,
		Description:    m.Description,
		Severity:       m.Severity,
		Status:         m.Status,
		Location:       m.Location,
		AreaID:         m.AreaID,
		ReporterID:     m.ReporterID,
		AssigneeID:     m.AssigneeID,
		ResolutionNote: m.ResolutionNote,
		ReportedAt:     m.ReportedAt,
		ResolvedAt:     m.ResolvedAt,
		ClosedAt:       m.ClosedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func photoFromModel(m *models.Photo) PhotoDTO {
	return PhotoDTO{
		ID:               m.ID,
		StorageKey:       m.StorageKey,
		OriginalFilename: m.OriginalFilename,
		MimeType:         m.MimeType,
		SizeBytes:        m.SizeBytes,
		UploadedAt:       m.UploadedAt,
	}
}

func historyFromModel(m *models.StatusHistory) StatusHistoryDTO {
	return StatusHistoryDTO{
		ID:         m.ID,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		Event:      m.Event,
		ActorID:    m.ActorID,
		Note:       m.Note,
		CreatedAt:  m.CreatedAt,
	}
}
