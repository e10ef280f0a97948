package coordinator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/cancel"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/coreerr"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/resource"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/workerpool"
)

// State names a Coordinator's position in the Created -> Running ->
// Draining -> Stopped lifecycle. Only Created accepts AddResource; only
// Running accepts the Schedule* family.
type State int32

const (
	Created State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// environmentState is the coordinator's internal bookkeeping for one
// Environment value: its currently selected units (once active), and how
// many dispatched tasks still reference it. activationMu serializes the
// slow Activate/Shutdown calls themselves; mu guards only the quick fields
// below it, so a long-running Activate never blocks unrelated bookkeeping
// reads on other environments.
type environmentState struct {
	env Environment

	activationMu sync.Mutex
	activated    bool

	mu              sync.Mutex
	active          bool
	selectedUnits   []int
	activeTaskCount int
}

func (es *environmentState) ensureActivated() {
	es.activationMu.Lock()
	defer es.activationMu.Unlock()
	if !es.activated {
		es.env.Activate()
		es.activated = true
	}
}

func (es *environmentState) ensureShutdown() {
	es.activationMu.Lock()
	defer es.activationMu.Unlock()
	if es.activated {
		es.env.Shutdown()
		es.activated = false
	}
}

// scheduledTask pairs a queued task with its optional environment and
// alternative, plus the units assigned to it once dispatched.
type scheduledTask struct {
	id            uuid.UUID
	task          Task
	env           *environmentState
	alternative   Task
	assignedUnits []int
}

// Coordinator is the scheduling engine: it accepts tasks (optionally paired
// with environments) into a FIFO waiting queue, matches them against a
// resource.Budget on a dedicated coordination goroutine, dispatches
// feasible tasks onto an elastic worker pool, and propagates a single
// shared cancellation signal to every running task at shutdown.
type Coordinator struct {
	config *Config

	budget        *resource.Budget
	totalCPUCores uint64

	mu        sync.Mutex
	waiting   []*scheduledTask
	envStates map[Environment]*environmentState

	sem *semaphore.Weighted

	pool *workerpool.Pool

	trigger *cancel.Trigger
	watcher *cancel.Watcher

	state        atomic.Int32
	shuttingDown atomic.Bool
	coordWG      sync.WaitGroup
	shutdownOnce sync.Once

	errMu      sync.Mutex
	shutdownErr error
}

// recordEnvironmentPanic aggregates a recovered environment-shutdown panic
// via multierr rather than dropping all but the last one, so Shutdown can
// report every environment that failed to tear down cleanly during drain.
func (c *Coordinator) recordEnvironmentPanic(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.shutdownErr = multierr.Append(c.shutdownErr, err)
}

// New constructs a Coordinator with no resources and no worker pool. Call
// AddResource to seed the budget, then Start to launch the coordination
// thread and begin accepting Schedule* calls.
func New(config *Config) (*Coordinator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.MinPoolThreads <= 0 {
		config.MinPoolThreads = DefaultConfig().MinPoolThreads
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	trigger, watcher := cancel.New()

	c := &Coordinator{
		config:    config,
		budget:    resource.NewBudget(&resource.BudgetConfig{Logger: config.Logger}),
		envStates: make(map[Environment]*environmentState),
		sem:       newTasksAvailable(),
		trigger:   trigger,
		watcher:   watcher,
	}
	return c, nil
}

// newTasksAvailable models a pure counting semaphore (post(n)/wait(timeout))
// on top of semaphore.Weighted, which otherwise hands out a fixed pool of
// tokens from construction. Acquiring the entire (enormous) initial
// capacity up front leaves the semaphore reporting zero tokens available
// until the first Release — i.e. "nothing scheduled yet" — exactly
// matching tasks_available's starting state.
func newTasksAvailable() *semaphore.Weighted {
	s := semaphore.NewWeighted(math.MaxInt64)
	_ = s.Acquire(context.Background(), math.MaxInt64)
	return s
}

func (c *Coordinator) postTasksAvailable(n int64) {
	c.sem.Release(n)
}

func (c *Coordinator) waitTasksAvailable(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = c.sem.Acquire(ctx, 1)
}

// AddResource forwards to the underlying budget. Legal only while the
// coordinator is in the Created state.
func (c *Coordinator) AddResource(kind resource.Kind, amount uint64) error {
	if State(c.state.Load()) != Created {
		return fmt.Errorf("coordinator: add_resource after start: %w", coreerr.ErrInvalidState)
	}
	if err := c.budget.AddResource(kind, amount); err != nil {
		return err
	}
	if kind == resource.CPUCores {
		c.mu.Lock()
		c.totalCPUCores += amount
		c.mu.Unlock()
	}
	return nil
}

// QueryResourceMaximum forwards to the underlying budget.
func (c *Coordinator) QueryResourceMaximum(kind resource.Kind) uint64 {
	return c.budget.QueryResourceMaximum(kind)
}

// Start requires at least one cpu_cores unit, builds the worker pool sized
// per spec (total_cpu_cores + 4*video_memory units + 1), freezes the
// budget against further AddResource calls, and launches the coordination
// goroutine. Calling Start twice, or with zero cpu_cores, is InvalidState.
func (c *Coordinator) Start() error {
	if State(c.state.Load()) != Created {
		return fmt.Errorf("coordinator: start called more than once: %w", coreerr.ErrInvalidState)
	}

	c.mu.Lock()
	cpuCores := c.totalCPUCores
	c.mu.Unlock()
	if cpuCores < 1 {
		return fmt.Errorf("coordinator: start requires at least one cpu_cores unit: %w", coreerr.ErrInvalidState)
	}

	if !c.state.CompareAndSwap(int32(Created), int32(Running)) {
		return fmt.Errorf("coordinator: start called more than once: %w", coreerr.ErrInvalidState)
	}

	c.budget.Freeze()

	maxThreads := int(cpuCores) + 4*c.budget.CountResourceUnits(resource.VideoMemory) + 1
	minThreads := c.config.MinPoolThreads
	if minThreads > maxThreads {
		minThreads = maxThreads
	}
	pool, err := workerpool.New(workerpool.Config{MinThreads: minThreads, MaxThreads: maxThreads})
	if err != nil {
		return fmt.Errorf("coordinator: failed to start worker pool: %w", err)
	}
	c.pool = pool

	if c.config.Logger != nil {
		c.config.Logger.Info("coordinator started", map[string]interface{}{
			"min_threads": minThreads,
			"max_threads": maxThreads,
		})
	}

	c.coordWG.Add(1)
	go c.coordinationLoop()
	return nil
}

func (c *Coordinator) environmentState(env Environment) *environmentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	es, ok := c.envStates[env]
	if !ok {
		es = &environmentState{env: env, selectedUnits: resource.NewUnitSelection()}
		c.envStates[env] = es
	}
	return es
}

// Schedule enqueues task with no environment and no alternative.
func (c *Coordinator) Schedule(task Task) error {
	return c.enqueue(nil, task, nil)
}

// ScheduleWithEnvironment enqueues task to run under env, lazily activated.
func (c *Coordinator) ScheduleWithEnvironment(env Environment, task Task) error {
	return c.enqueue(env, task, nil)
}

// ScheduleWithAlternative enqueues preferred; if preferred can never be
// placed (CanEverExecute is false), the coordinator substitutes alternative
// on a later kick-off pass.
func (c *Coordinator) ScheduleWithAlternative(preferred, alternative Task) error {
	return c.enqueue(nil, preferred, alternative)
}

// ScheduleWithEnvironmentAndAlternative combines both options.
func (c *Coordinator) ScheduleWithEnvironmentAndAlternative(env Environment, preferred, alternative Task) error {
	return c.enqueue(env, preferred, alternative)
}

func (c *Coordinator) enqueue(env Environment, task, alternative Task) error {
	if State(c.state.Load()) != Running {
		return fmt.Errorf("coordinator: schedule before start or after shutdown: %w", coreerr.ErrInvalidState)
	}

	var es *environmentState
	if env != nil {
		es = c.environmentState(env)
	}

	st := &scheduledTask{id: uuid.New(), task: task, env: es, alternative: alternative}

	c.mu.Lock()
	c.waiting = append(c.waiting, st)
	queueDepth := len(c.waiting)
	c.mu.Unlock()

	if c.config.Metrics != nil {
		c.config.Metrics.QueueDepth.Set(float64(queueDepth))
	}

	c.postTasksAvailable(1)
	return nil
}

// Prioritize moves task to the head of the waiting queue if it is still
// waiting, returning true if found.
func (c *Coordinator) Prioritize(task Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, st := range c.waiting {
		if st.task == task {
			c.waiting = append(c.waiting[:i:i], c.waiting[i+1:]...)
			c.waiting = append([]*scheduledTask{st}, c.waiting...)
			return true
		}
	}
	return false
}

// Cancel removes task (and its alternative, if any) from the waiting queue
// if it is still there, returning true if found. A task already dispatched
// cannot be canceled this way — only coordinator-wide shutdown signals
// running tasks. Passing an alternative task directly (rather than the
// preferred task it backs) never matches, matching spec's "cancelling an
// alternative directly is illegal".
func (c *Coordinator) Cancel(task Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, st := range c.waiting {
		if st.task == task {
			c.waiting = append(c.waiting[:i:i], c.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// CancelAll drains the waiting queue. If forever, the coordinator also
// transitions to Draining, rejecting all future Schedule* calls.
func (c *Coordinator) CancelAll(forever bool) {
	c.mu.Lock()
	c.waiting = nil
	c.mu.Unlock()

	if forever {
		c.state.CompareAndSwap(int32(Running), int32(Draining))
	}
}

// Shutdown cancels the coordinator's shared cancellation trigger, stops
// accepting new kick-offs, waits for the coordination goroutine and every
// dispatched task to finish, and tears down the worker pool. Shutdown is
// idempotent and safe to call from any state. It returns the aggregate
// (via go.uber.org/multierr) of any panics recovered from environment
// Shutdown callbacks during drain.
func (c *Coordinator) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.state.Store(int32(Draining))
		c.trigger.Cancel("coordinator shutdown")
		c.shuttingDown.Store(true)
		c.postTasksAvailable(1 << 20)
		c.coordWG.Wait()
		if c.pool != nil {
			c.pool.Shutdown()
		}
		c.state.Store(int32(Stopped))
	})
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.shutdownErr
}

func (c *Coordinator) coordinationLoop() {
	defer c.coordWG.Done()
	for {
		c.waitTasksAvailable(c.config.PollInterval)
		if c.shuttingDown.Load() {
			return
		}
		c.kickOff()
	}
}

// kickOff is one pass of the coordination loop: walk the waiting queue in
// FIFO order, dispatching every entry the budget can currently satisfy and
// leaving the rest in place so a later, smaller task still gets a chance.
func (c *Coordinator) kickOff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.waiting[:0]
	for _, st := range c.waiting {
		if !c.tryDispatchLocked(st) {
			remaining = append(remaining, st)
		}
	}
	c.waiting = remaining

	if c.config.Metrics != nil {
		c.config.Metrics.QueueDepth.Set(float64(len(remaining)))
	}
}

func (c *Coordinator) tryDispatchLocked(st *scheduledTask) bool {
	taskManifest := st.task.Resources()

	units := resource.NewUnitSelection()
	envActive := false
	var envManifest *resource.Manifest
	if st.env != nil {
		st.env.mu.Lock()
		envActive = st.env.active
		if envActive {
			copy(units, st.env.selectedUnits)
		}
		st.env.mu.Unlock()
		envManifest = st.env.env.Resources()
	}

	var ok bool
	if st.env != nil && !envActive {
		ok = c.budget.Allocate(units, envManifest, taskManifest)
	} else {
		ok = c.budget.Allocate(units, taskManifest)
	}

	if !ok {
		// Once the environment is already active, its resources are already
		// committed to specific units outside the budget's general
		// feasibility math — folding envManifest back into this check would
		// double-count demand already reserved and can wrongly declare a
		// placement impossible (or possible) forever. Only consider the
		// environment's own demand here when it has not yet been reserved.
		feasibilityEnvManifest := envManifest
		if envActive {
			feasibilityEnvManifest = nil
		}
		if st.alternative != nil && !c.budget.CanEverExecute(taskManifest, feasibilityEnvManifest) {
			st.task = st.alternative
			st.alternative = nil
		}
		return false
	}

	st.assignedUnits = units
	if st.env != nil {
		st.env.mu.Lock()
		if !envActive {
			st.env.active = true
			st.env.selectedUnits = units
		}
		st.env.activeTaskCount++
		st.env.mu.Unlock()
	}

	c.dispatch(st)
	return true
}

// dispatch submits the closure described in spec §4.6.5: activate the
// environment if needed, run the task, release resources on return (or
// panic), shut the environment down once its last active task finishes,
// and post to tasks_available so freed capacity gets re-evaluated promptly
// instead of waiting out the full poll interval.
func (c *Coordinator) dispatch(st *scheduledTask) {
	watcher := c.watcher
	env := st.env
	task := st.task
	units := st.assignedUnits
	metricsCollector := c.config.Metrics
	logger := c.config.Logger

	if metricsCollector != nil {
		metricsCollector.TasksDispatchedTotal.Inc()
	}

	c.pool.Go(func(ctx context.Context) {
		if env != nil {
			env.ensureActivated()
		}

		func() {
			defer func() {
				if r := recover(); r != nil && logger != nil {
					logger.Error("task panicked", map[string]interface{}{"panic": fmt.Sprintf("%v", r)})
				}
			}()
			task.Run(units, watcher)
		}()

		if metricsCollector != nil {
			metricsCollector.TasksCompletedTotal.Inc()
		}

		c.budget.Release(units, task.Resources())

		if env != nil {
			env.mu.Lock()
			env.activeTaskCount--
			lastOne := env.activeTaskCount == 0
			env.mu.Unlock()

			if lastOne {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.recordEnvironmentPanic(fmt.Errorf("coordinator: environment shutdown panicked: %v", r))
						}
					}()
					env.ensureShutdown()
				}()
				c.budget.Release(units, env.env.Resources())
				env.mu.Lock()
				env.active = false
				env.mu.Unlock()
			}
		}

		c.postTasksAvailable(1)
	})
}
