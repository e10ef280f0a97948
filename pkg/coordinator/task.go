// Package coordinator implements the Task Coordinator: the scheduling loop
// that accepts tasks (optionally paired with environments), matches them
// against a resource.Budget, dispatches them onto a worker pool, and
// propagates cancellation.
package coordinator

import (
	"time"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/cancel"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/resource"
)

// Task is opaque to the coordinator beyond this surface: a stable resource
// manifest and a run operation invoked once the coordinator has reserved
// the units it names. Task identity is by reference — the same *MyTask
// passed to Schedule is what Cancel and Prioritize match against.
type Task interface {
	// Resources returns the manifest describing what this task consumes
	// while running. The returned value must remain stable for as long as
	// the task is queued or running.
	Resources() *resource.Manifest

	// Run executes the task body on a worker goroutine. unitIndices holds,
	// per resource.Kind, the unit index the coordinator reserved for this
	// run — index K is fixed, unused kinds hold resource.SentinelAny. Run
	// must not let a panic escape in a way that corrupts coordinator
	// bookkeeping; the coordinator recovers one anyway, but well-behaved
	// tasks catch their own errors. Run should periodically consult watcher
	// for cooperative cancellation.
	Run(unitIndices []int, watcher *cancel.Watcher)
}

// Environment is optional companion state shared by any number of tasks
// referencing the same Environment value. The coordinator activates it
// lazily before the first task that needs it runs, and shuts it down once
// no active task still references it.
type Environment interface {
	// Resources returns the manifest this environment holds while active,
	// or nil if it needs no dedicated resources beyond what its tasks
	// already declare.
	Resources() *resource.Manifest

	// ActivationDuration and ShutdownDuration are hints consumed by
	// batching/teardown-timing policy, not enforced by the coordinator.
	ActivationDuration() time.Duration
	ShutdownDuration() time.Duration

	// Activate is called once, synchronized per environment, before any
	// task using this environment's currently selected units runs.
	Activate()

	// Shutdown is called once active task count returns to zero and the
	// coordinator decides to reclaim the environment, before its resources
	// are released back to the budget.
	Shutdown()
}
