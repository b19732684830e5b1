package findings

import (
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

type transitionKey struct {
	from  enums.FindingStatus
	event enums.TransitionEvent
}

// transitionTable is the full lifecycle. Anything absent is an invalid
// transition. reopen and the admin override close admit more than one
// endpoint, so targets are a set.
var transitionTable = map[transitionKey][]enums.FindingStatus{
	{enums.FindingStatusOpen, enums.TransitionStartWork}:     {enums.FindingStatusInProgress},
	{enums.FindingStatusInProgress, enums.TransitionResolve}: {enums.FindingStatusResolved},
	{enums.FindingStatusResolved, enums.TransitionClose}:     {enums.FindingStatusClosed},
	{enums.FindingStatusResolved, enums.TransitionReopen}:    {enums.FindingStatusOpen, enums.FindingStatusInProgress},
	{enums.FindingStatusOpen, enums.TransitionClose}:         {enums.FindingStatusClosed},
	{enums.FindingStatusInProgress, enums.TransitionClose}:   {enums.FindingStatusClosed},
}

// deriveEvent maps a requested target status onto the lifecycle event that
// reaches it from the current status. Unreachable targets fail with a state
// conflict and leave the finding untouched.
func deriveEvent(current, target enums.FindingStatus) (enums.TransitionEvent, error) {
	if !target.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown finding status")
	}
	if current.IsTerminal() {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "finding is closed and accepts no further transitions")
	}

	for _, event := range []enums.TransitionEvent{
		enums.TransitionStartWork,
		enums.TransitionResolve,
		enums.TransitionClose,
		enums.TransitionReopen,
	} {
		for _, to := range transitionTable[transitionKey{from: current, event: event}] {
			if to == target {
				return event, nil
			}
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition")
}

// isOverrideClose reports whether the transition is the admin-only close that
// skips the resolved stage.
func isOverrideClose(current enums.FindingStatus, event enums.TransitionEvent) bool {
	return event == enums.TransitionClose && current != enums.FindingStatusResolved
}
