// Package cancel provides a one-shot, monotonic cancellation primitive: a
// Trigger the owner cancels and a Watcher tasks observe, sharing one atomic
// state rather than the weak_ptr-to-self trick the original C++
// implementation used to avoid a reference cycle (a problem Go's garbage
// collector doesn't have, so the two-object split is enough on its own).
package cancel

import (
	"sync/atomic"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/coreerr"
)

// state is the shared cell a Trigger and its Watchers read/write. Holding it
// behind a pointer (rather than embedding fields in both Trigger and
// Watcher) is what lets Cancel on one side become visible to every Watcher
// copy without either side needing a reference to the other's concrete type.
type state struct {
	claimed  atomic.Bool // CAS-won by the first Cancel call, before reason is written
	canceled atomic.Bool
	reason   atomic.Value // string, written before canceled flips true
}

// Trigger is held by whoever decides when to cancel — typically the
// coordinator, on a task's behalf, or the caller holding a scheduled task's
// handle. Trigger is safe for concurrent use; Cancel is idempotent.
type Trigger struct {
	s *state
}

// Watcher is handed to the code that should react to cancellation — a task's
// Run implementation, an environment's shutdown path. Watcher is safe
// for concurrent use and carries no ability to cancel, only to observe.
type Watcher struct {
	s *state
}

// New creates a fresh, not-yet-canceled Trigger/Watcher pair sharing one
// underlying state cell.
func New() (*Trigger, *Watcher) {
	s := &state{}
	return &Trigger{s: s}, &Watcher{s: s}
}

// Cancel records reason and flips the shared state to canceled, in that
// order, so a Watcher that observes IsCanceled() == true is guaranteed to
// also observe the correct Reason() — never "". Only the first call has any
// effect; later calls (with any reason) are no-ops, so the recorded reason
// is always the one from whichever call won the claim race.
func (t *Trigger) Cancel(reason string) {
	if !t.s.claimed.CompareAndSwap(false, true) {
		return
	}
	t.s.reason.Store(reason)
	t.s.canceled.Store(true)
}

// IsCanceled reports whether Cancel has been called.
func (t *Trigger) IsCanceled() bool {
	return t.s.canceled.Load()
}

// Watcher returns a new Watcher over the same shared state as t. Useful when
// a single Trigger must be distributed to several independently-held
// observers after creation.
func (t *Trigger) Watcher() *Watcher {
	return &Watcher{s: t.s}
}

// IsCanceled reports whether the Trigger side has called Cancel.
func (w *Watcher) IsCanceled() bool {
	return w.s.canceled.Load()
}

// Reason returns the string passed to Cancel, or "" if not yet canceled.
func (w *Watcher) Reason() string {
	if !w.s.canceled.Load() {
		return ""
	}
	if v, ok := w.s.reason.Load().(string); ok {
		return v
	}
	return ""
}

// ThrowIfCanceled returns a *coreerr.ErrCanceled-compatible error via
// coreerr.NewCanceled if canceled, nil otherwise. Named ThrowIfCanceled after
// the teacher spec's check-and-bail idiom even though Go surfaces it as a
// return value rather than a throw.
func (w *Watcher) ThrowIfCanceled() error {
	if !w.IsCanceled() {
		return nil
	}
	return coreerr.NewCanceled(w.Reason())
}
