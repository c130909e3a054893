package worksession

import (
	"github.com/bitfantasy/oficina/internal/workshop/status"
)

// Action is a user-triggered work-session transition.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionFinalize Action = "finalize"
)

// Label returns the button label for the action.
func (a Action) Label() string {
	switch a {
	case ActionStart:
		return "Start"
	case ActionPause:
		return "Pause"
	case ActionResume:
		return "Resume"
	case ActionFinalize:
		return "Finalize"
	default:
		return string(a)
	}
}

// Controls is the enabled/disabled state of every work-session control.
type Controls struct {
	// Primary is the action bound to the start button: ActionResume when the
	// order is paused, ActionStart otherwise.
	Primary  Action `json:"primary"`
	Start    bool   `json:"start"`
	Pause    bool   `json:"pause"`
	Resume   bool   `json:"resume"`
	Finalize bool   `json:"finalize"`
}

// Enabled reports whether the given action may be issued.
func (c Controls) Enabled(a Action) bool {
	switch a {
	case ActionStart:
		return c.Start
	case ActionPause:
		return c.Pause
	case ActionResume:
		return c.Resume
	case ActionFinalize:
		return c.Finalize
	}
	return false
}

// PrimaryLabel is the label currently shown on the start button.
func (c Controls) PrimaryLabel() string {
	return c.Primary.Label()
}

// EvaluateControls applies the client-side guards to an order. The guards are
// advisory; the backend remains the final authority. A nil order disables
// everything.
func EvaluateControls(o *Order, submitting bool) Controls {
	ctl := Controls{Primary: ActionStart}
	if o == nil {
		return ctl
	}

	state := o.State()
	canonical := o.Canonical()
	if state == Paused {
		ctl.Primary = ActionResume
	}
	if submitting {
		return ctl
	}

	startBlocked := canonical == status.Done || status.IsPaymentOrFinalized(o.Status)

	ctl.Start = state == NotStarted && !startBlocked
	ctl.Resume = state == Paused && !startBlocked
	ctl.Pause = state == Running &&
		canonical != status.Pending && canonical != status.Done &&
		!o.IsPaused
	ctl.Finalize = (state == Running || state == Paused) &&
		canonical != status.Done && canonical != status.Pending &&
		!o.IsPaused &&
		!o.HasPendingExtras()

	return ctl
}
