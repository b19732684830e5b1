package enums

import "fmt"

// FindingStatus maps to the finding_status enum in Postgres.
type FindingStatus string

const (
	FindingStatusOpen       FindingStatus = "open"
	FindingStatusInProgress FindingStatus = "in_progress"
	FindingStatusResolved   FindingStatus = "resolved"
	FindingStatusClosed     FindingStatus = "closed"
)

var validFindingStatuses = []FindingStatus{
	FindingStatusOpen,
	FindingStatusInProgress,
	FindingStatusResolved,
	FindingStatusClosed,
}

// String implements fmt.Stringer.
func (f FindingStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FindingStatus.
func (f FindingStatus) IsValid() bool {
	for _, candidate := range validFindingStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (f FindingStatus) IsTerminal() bool {
	return f == FindingStatusClosed
}

// ParseFindingStatus converts raw input into a FindingStatus.
func ParseFindingStatus(value string) (FindingStatus, error) {
	for _, candidate := range validFindingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid finding status %q", value)
}
