package coordinator

import (
	"sync/atomic"
	"testing"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/cancel"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/workerpool"
)

func TestThreadedTaskFanOutCallsNInvocations(t *testing.T) {
	pool, err := workerpool.New(workerpool.Config{MinThreads: 2, MaxThreads: 4})
	if err != nil {
		t.Fatalf("workerpool.New: %v", err)
	}
	defer pool.Shutdown()

	var calls int64
	tt, err := NewThreadedTask(pool, 5, func(threadIndex int, units []int, watcher *cancel.Watcher) {
		atomic.AddInt64(&calls, 1)
	})
	if err != nil {
		t.Fatalf("NewThreadedTask: %v", err)
	}

	if err := tt.Run(nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 5 {
		t.Fatalf("expected exactly 5 threaded_run calls, got %d", got)
	}
}

func TestThreadedTaskNEqualsOneRunsInline(t *testing.T) {
	var ranOnCallerGoroutine bool
	tt, err := NewThreadedTask(nil, 1, func(threadIndex int, units []int, watcher *cancel.Watcher) {
		ranOnCallerGoroutine = true
	})
	if err != nil {
		t.Fatalf("NewThreadedTask: %v", err)
	}
	if err := tt.Run(nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ranOnCallerGoroutine {
		t.Fatalf("expected N=1 to execute without a pool round-trip")
	}
}

func TestThreadedTaskWaitsForAllDespitePanic(t *testing.T) {
	pool, err := workerpool.New(workerpool.Config{MinThreads: 2, MaxThreads: 4})
	if err != nil {
		t.Fatalf("workerpool.New: %v", err)
	}
	defer pool.Shutdown()

	var completed int64
	tt, err := NewThreadedTask(pool, 4, func(threadIndex int, units []int, watcher *cancel.Watcher) {
		defer atomic.AddInt64(&completed, 1)
		if threadIndex == 2 {
			panic("boom")
		}
	})
	if err != nil {
		t.Fatalf("NewThreadedTask: %v", err)
	}

	if err := tt.Run(nil, nil); err == nil {
		t.Fatalf("expected panic from one invocation to surface as an error")
	}
	if got := atomic.LoadInt64(&completed); got != 4 {
		t.Fatalf("expected all 4 invocations to complete despite one panicking, got %d", got)
	}
}

func TestNewThreadedTaskRejectsZeroN(t *testing.T) {
	if _, err := NewThreadedTask(nil, 0, func(int, []int, *cancel.Watcher) {}); err == nil {
		t.Fatalf("expected N=0 to be rejected")
	}
}
