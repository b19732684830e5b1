package access

import (
	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// Identity is the per-request resolved actor. Middleware builds it from the
// database row, never from client-asserted claims.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.Role
	IsActive bool
}

// Action enumerates everything the gate can be asked about.
type Action string

const (
	ActionReadFinding       Action = "read_finding"
	ActionCreateFinding     Action = "create_finding"
	ActionTransitionFinding Action = "transition_finding"
	ActionOverrideClose     Action = "override_close"
	ActionAssignFinding     Action = "assign_finding"
	ActionAppendPhoto       Action = "append_photo"
	ActionViewSummary       Action = "view_summary"
	ActionManageAreas       Action = "manage_areas"
	ActionListUsers         Action = "list_users"
	ActionManageUsers       Action = "manage_users"
)

// Decision tells the caller whether to proceed, and how to refuse.
type Decision int

const (
	// Allow grants the action.
	Allow Decision = iota
	// DenyForbidden refuses with a permission error.
	DenyForbidden
	// DenyNotFound refuses while hiding that the resource exists.
	DenyNotFound
)

// FindingRef carries the minimum finding fields the gate needs.
type FindingRef struct {
	ReporterID uuid.UUID
}

// CanAccess is the single authorization decision point. Controllers and
// services consult it instead of scattering role checks.
func CanAccess(actor Identity, action Action, finding *FindingRef) Decision {
	if !actor.IsActive || !actor.Role.IsValid() {
		return DenyForbidden
	}

	switch actor.Role {
	case enums.RoleSuperAdmin:
		return Allow

	case enums.RoleAdmin:
		if action == ActionManageUsers || action == ActionManageAreas {
			return DenyForbidden
		}
		return Allow

	case enums.RoleReporter:
		switch action {
		case ActionCreateFinding:
			return Allow
		case ActionReadFinding, ActionTransitionFinding, ActionAppendPhoto:
			if finding == nil {
				return DenyForbidden
			}
			if finding.ReporterID == actor.UserID {
				return Allow
			}
			// Reporters must not learn that other findings exist.
			return DenyNotFound
		default:
			return DenyForbidden
		}
	}

	return DenyForbidden
}
