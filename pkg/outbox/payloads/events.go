package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// FindingCreatedEvent signals a newly reported finding.
type FindingCreatedEvent struct {
	FindingID  uuid.UUID      `json:"finding_id"`
	ReportID   string         `json:"report_id"`
	Title      string         `json:"title"`
	Severity   enums.Severity `json:"severity"`
	AreaID     uuid.UUID      `json:"area_id"`
	ReporterID uuid.UUID      `json:"reporter_id"`
}

// FindingStatusChangedEvent is emitted whenever a finding moves through its lifecycle.
type FindingStatusChangedEvent struct {
	FindingID  uuid.UUID           `json:"finding_id"`
	ReportID   string              `json:"report_id"`
	FromStatus enums.FindingStatus `json:"from_status"`
	ToStatus   enums.FindingStatus `json:"to_status"`
	Event      string              `json:"event"`
	ActorID    uuid.UUID           `json:"actor_id"`
	Note       string              `json:"note,omitempty"`
}

// FindingAssignedEvent tells downstream systems an admin owns the finding now.
type FindingAssignedEvent struct {
	FindingID  uuid.UUID `json:"finding_id"`
	ReportID   string    `json:"report_id"`
	AssigneeID uuid.UUID `json:"assignee_id"`
	AssignedBy uuid.UUID `json:"assigned_by"`
}

// SummaryRequestedEvent carries the window for a scheduled digest.
type SummaryRequestedEvent struct {
	Kind        enums.NotificationKind `json:"kind"`
	WindowStart time.Time              `json:"window_start"`
	WindowEnd   time.Time              `json:"window_end"`
}
