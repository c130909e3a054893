// Package worksession tracks the start/pause/resume/finalize lifecycle of a
// service order and keeps a locally ticking work clock in sync with the
// backend.
package worksession

import (
	"time"

	"github.com/bitfantasy/oficina/internal/workshop/status"
)

// State is the work-session state of an order. Exactly one holds at a time.
type State int

const (
	NotStarted State = iota
	Running
	Paused
	Finalized
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Extra service approval states.
const (
	ExtraPending  = "pending"
	ExtraApproved = "approved"
	ExtraRejected = "rejected"
)

// ExtraService is an additional service proposed on an order.
type ExtraService struct {
	ID          string
	Description string
	State       string
}

// Order is the subset of a service order the work session needs.
type Order struct {
	ID             string
	Status         string
	StartTime      *time.Time
	IsPaused       bool
	ElapsedSeconds int64
	ExtraServices  []ExtraService
}

// Canonical returns the normalized status of the order.
func (o *Order) Canonical() status.Canonical {
	return status.Normalize(o.Status)
}

// State derives the work-session state of the order.
func (o *Order) State() State {
	return Derive(o.Status, o.StartTime != nil, o.IsPaused)
}

// HasPendingExtras reports whether any extra service still awaits approval.
func (o *Order) HasPendingExtras() bool {
	for _, e := range o.ExtraServices {
		if e.State == ExtraPending {
			return true
		}
	}
	return false
}

// Derive maps raw order fields onto a State. A done order is finalized
// regardless of its timer fields; is_paused is ignored on a never-started order.
func Derive(rawStatus string, started, paused bool) State {
	if status.Normalize(rawStatus) == status.Done {
		return Finalized
	}
	if !started {
		return NotStarted
	}
	if paused {
		return Paused
	}
	return Running
}
