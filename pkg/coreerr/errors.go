// Package coreerr collects the sentinel and typed errors shared across
// resource, cancel, and coordinator, following the teacher's convention of
// small named error values plus fmt.Errorf("...: %w", err) wrapping at call
// sites rather than a heavyweight error-code hierarchy.
package coreerr

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation is attempted against a
// coordinator or budget in a state that does not permit it (e.g. scheduling
// against a coordinator that was never started, starting it twice, or
// AddResource after Start).
var ErrInvalidState = errors.New("coreerr: invalid state for this operation")

// ErrPlacementInfeasible marks a manifest that can never be satisfied by a
// budget regardless of current load (can_ever_execute returned false). No
// operation in this module returns it: Budget.CanEverExecute reports the
// condition as false, and the coordinator reacts by substituting a task's
// alternative, or by leaving the task waiting in the queue when it has none.
var ErrPlacementInfeasible = errors.New("coreerr: resource manifest can never be satisfied by this budget")

// ErrCanceled wraps the reason string given to a cancellation Trigger's
// Cancel call. errors.Is(err, &ErrCanceled{}) reports true for any Canceled
// value regardless of reason; Reason extracts the human-readable string.
type ErrCanceled struct {
	Reason string
}

func (e *ErrCanceled) Error() string {
	if e.Reason == "" {
		return "coreerr: task canceled"
	}
	return fmt.Sprintf("coreerr: task canceled: %s", e.Reason)
}

// Is makes errors.Is(err, &ErrCanceled{}) match any *ErrCanceled regardless of
// Reason, mirroring how ErrInvalidState/ErrPlacementInfeasible match by
// identity alone.
func (e *ErrCanceled) Is(target error) bool {
	_, ok := target.(*ErrCanceled)
	return ok
}

// NewCanceled builds an *ErrCanceled carrying reason.
func NewCanceled(reason string) error {
	return &ErrCanceled{Reason: reason}
}
