package areas

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
)

// AreaDTO is the transport shape for a single area, including the derived
// full path from the root.
type AreaDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Level       int        `json:"level"`
	FullPath    string     `json:"full_path"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AreaNode is an AreaDTO plus nested children, used by the tree endpoint.
type AreaNode struct {
	AreaDTO
	Children []*AreaNode `json:"children"`
}

// CreateAreaInput holds the fields accepted when creating an area.
type CreateAreaInput struct {
	Name        string
	Description *string
	ParentID    *uuid.UUID
}

// ListAreasParams filters the flat area listing.
type ListAreasParams struct {
	Level    *int
	ParentID *uuid.UUID
}

// UpdateAreaInput holds the mutable fields. ParentID moves the node under a
// new parent; MoveToRoot promotes it to a root instead.
type UpdateAreaInput struct {
	Name        *string
	Description *string
	IsActive    *bool
	ParentID    *uuid.UUID
	MoveToRoot  bool
}

func fromModel(m *models.Area, fullPath string) *AreaDTO {
	if m == nil {
		return nil
	}
	return &AreaDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		ParentID:    m.ParentID,
		Level:       m.Level,
		FullPath:    fullPath,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
