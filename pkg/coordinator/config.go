package coordinator

import (
	"fmt"
	"time"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/common/logging"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/metrics"
)

// Config configures a Coordinator. New replaces a non-positive PollInterval
// or MinPoolThreads with the DefaultConfig value, so the zero value is
// usable as well.
type Config struct {
	// Logger receives an Info line when Start succeeds and an Error line for
	// every task whose Run panicked; it is also handed to the budget. It is
	// used as given, with no component tag added. Kick-off and dispatch
	// decisions are not logged. Nil silences all coordinator logging.
	Logger *logging.Logger

	// PollInterval is how long the coordination thread waits on
	// tasks_available before re-running kick-off even without a new
	// arrival — the belt-and-braces guard against a missed wakeup when a
	// release frees capacity for an already-waiting task. Spec default:
	// 50ms.
	PollInterval time.Duration

	// MinPoolThreads is the worker pool's minimum, always-running thread
	// count, independent of current load. Spec suggests a small default
	// (3) to avoid pre-warming many threads on lightly loaded systems; it
	// is clamped down to the computed max if that max is smaller.
	MinPoolThreads int

	// Metrics optionally receives the queue depth and the dispatch/completion
	// counters. The coordinator does not set the collector's per-kind
	// remaining-capacity gauge. Nil disables all metrics recording.
	Metrics *metrics.Collector
}

// DefaultConfig returns PollInterval=50ms, MinPoolThreads=3, no logger.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   50 * time.Millisecond,
		MinPoolThreads: 3,
	}
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("coordinator: PollInterval must be positive")
	}
	if c.MinPoolThreads < 1 {
		return fmt.Errorf("coordinator: MinPoolThreads must be >= 1")
	}
	return nil
}
