package enums

import "fmt"

// TransitionEvent names a lifecycle action applied to a finding.
type TransitionEvent string

const (
	TransitionStartWork TransitionEvent = "start_work"
	TransitionResolve   TransitionEvent = "resolve"
	TransitionClose     TransitionEvent = "close"
	TransitionReopen    TransitionEvent = "reopen"
)

var validTransitionEvents = []TransitionEvent{
	TransitionStartWork,
	TransitionResolve,
	TransitionClose,
	TransitionReopen,
}

// String implements fmt.Stringer.
func (t TransitionEvent) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransitionEvent.
func (t TransitionEvent) IsValid() bool {
	for _, candidate := range validTransitionEvents {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransitionEvent converts raw input into a TransitionEvent.
func ParseTransitionEvent(value string) (TransitionEvent, error) {
	for _, candidate := range validTransitionEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transition event %q", value)
}
