package coordinator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/cancel"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/workerpool"
)

// ThreadedRunFunc is one of the N parallel invocations a ThreadedTask fans
// out. threadIndex ranges [0, N).
type ThreadedRunFunc func(threadIndex int, unitIndices []int, watcher *cancel.Watcher)

// ThreadedTask is a convenience wrapper for a task whose body is itself
// data-parallel: Run schedules N invocations of fn onto pool and waits for
// all of them before returning, regardless of whether any of them panic.
type ThreadedTask struct {
	pool *workerpool.Pool
	n    int
	fn   ThreadedRunFunc
}

// NewThreadedTask constructs a ThreadedTask. N must be >= 1.
func NewThreadedTask(pool *workerpool.Pool, n int, fn ThreadedRunFunc) (*ThreadedTask, error) {
	if n <= 0 {
		return nil, fmt.Errorf("coordinator: threaded task N must be >= 1, got %d", n)
	}
	if fn == nil {
		return nil, fmt.Errorf("coordinator: threaded task requires a non-nil run function")
	}
	return &ThreadedTask{pool: pool, n: n, fn: fn}, nil
}

// Run executes all N invocations of the configured function and waits for
// every one to finish. N==1 runs inline on the caller's goroutine with no
// pool round-trip. For N>1, invocations fan out onto pool via
// golang.org/x/sync/errgroup, which — used here without WithContext — waits
// for every goroutine to return before Wait yields the first error, so one
// invocation panicking never starves the others of a chance to finish.
func (t *ThreadedTask) Run(unitIndices []int, watcher *cancel.Watcher) error {
	if t.n == 1 {
		return runRecovered(t.fn, 0, unitIndices, watcher)
	}

	var g errgroup.Group
	for i := 0; i < t.n; i++ {
		threadIndex := i
		g.Go(func() error {
			handle, err := t.pool.Submit(func(ctx context.Context) {
				t.fn(threadIndex, unitIndices, watcher)
			})
			if err != nil {
				return err
			}
			return handle.Wait()
		})
	}
	return g.Wait()
}

func runRecovered(fn ThreadedRunFunc, threadIndex int, unitIndices []int, watcher *cancel.Watcher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coordinator: threaded_run panicked: %v", r)
		}
	}()
	fn(threadIndex, unitIndices, watcher)
	return nil
}
