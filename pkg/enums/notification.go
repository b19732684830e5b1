package enums

import "fmt"

// NotificationKind names a user-facing notification category.
type NotificationKind string

const (
	NotificationKindNewFinding    NotificationKind = "new_finding"
	NotificationKindStatusChange  NotificationKind = "status_change"
	NotificationKindAssignment    NotificationKind = "assignment"
	NotificationKindDailySummary  NotificationKind = "daily_summary"
	NotificationKindWeeklySummary NotificationKind = "weekly_summary"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindNewFinding,
	NotificationKindStatusChange,
	NotificationKindAssignment,
	NotificationKindDailySummary,
	NotificationKindWeeklySummary,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
