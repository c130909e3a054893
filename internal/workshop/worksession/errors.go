package worksession

import (
	"errors"
	"fmt"
)

var (
	// ErrActionUnavailable is returned when a guard disables the action. No
	// call reaches the store.
	ErrActionUnavailable = errors.New("action unavailable")
	// ErrSubmitting is returned while another action is still in flight.
	ErrSubmitting = errors.New("another action is in progress")
	// ErrClosed is returned by a controller after Close.
	ErrClosed = errors.New("controller closed")
)

// ActionError is a transition call rejected by the store or lost in transport.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
