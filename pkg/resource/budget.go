package resource

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/common/logging"
	"github.com/nuclex-shared-cpp/platform-tasks-go/pkg/coreerr"
)

// resourceUnit is one physical provider of a resource kind — one CPU
// socket's cores, one GPU's video memory. total never changes after
// AddResource; remaining is the only field mutated after construction, via
// Allocate's compare-and-swap loop and Release's atomic add.
type resourceUnit struct {
	total     uint64
	remaining atomic.Uint64
}

// BudgetConfig configures a Budget. The zero value is what
// DefaultBudgetConfig returns, mirroring the Config/DefaultConfig pattern
// used across this module.
type BudgetConfig struct {
	// Logger receives a Debug-level line for every unit AddResource adds. A
	// nil Logger silences all budget logging.
	Logger *logging.Logger
}

// DefaultBudgetConfig returns a config with no logger attached.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{}
}

// Budget is the accountant: per resource kind, an append-only list of units
// plus a cached highest_total used for fast feasibility screening. Budget is
// safe for concurrent use — structural changes (AddResource, Clone) take
// mu, while remaining-amount changes (Allocate/Release) only need mu for
// read access to the (by then fixed) unit list and proceed lock-free via
// atomic compare-and-swap (Allocate) or atomic add (Release) on each unit.
type Budget struct {
	mu           sync.RWMutex
	units        [K][]*resourceUnit
	highestTotal [K]uint64
	frozen       atomic.Bool
	logger       *logging.Logger
}

// NewBudget constructs an empty budget with no units of any kind.
func NewBudget(config *BudgetConfig) *Budget {
	if config == nil {
		config = DefaultBudgetConfig()
	}
	return &Budget{logger: config.Logger}
}

// Freeze forbids further AddResource calls. The coordinator calls this from
// Start, matching spec's "appending is forbidden after the coordinator has
// been started".
func (b *Budget) Freeze() {
	b.frozen.Store(true)
}

// AddResource appends a new unit of amount capacity to kind's unit list.
// Repeated calls for the same kind do NOT merge into one larger unit — two
// calls with video_memory=8GiB each produce two independent 8GiB units, not
// one 16GiB unit, so two 8GiB tasks can run in parallel but no single task
// can claim 16GiB from either alone. Illegal once Freeze has been called.
func (b *Budget) AddResource(kind Kind, amount uint64) error {
	if !kind.valid() {
		return fmt.Errorf("resource: invalid kind %v", kind)
	}
	if b.frozen.Load() {
		return fmt.Errorf("resource: add_resource after start: %w", coreerr.ErrInvalidState)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u := &resourceUnit{total: amount}
	u.remaining.Store(amount)
	b.units[kind] = append(b.units[kind], u)
	if amount > b.highestTotal[kind] {
		b.highestTotal[kind] = amount
	}

	if b.logger != nil {
		b.logger.Debug("resource unit added", map[string]interface{}{
			"kind":   kind.String(),
			"amount": amount,
			"units":  len(b.units[kind]),
		})
	}
	return nil
}

// QueryResourceMaximum returns the largest single unit's total for kind, or
// 0 if there are none.
func (b *Budget) QueryResourceMaximum(kind Kind) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !kind.valid() {
		return 0
	}
	return b.highestTotal[kind]
}

// CountResourceUnits returns the number of units of kind.
func (b *Budget) CountResourceUnits(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !kind.valid() {
		return 0
	}
	return len(b.units[kind])
}

// CanEverExecute reports whether some single unit of every kind demanded by
// primary+secondary could ever satisfy that demand, regardless of current
// load. A false here means the task should never be scheduled, not just
// that it must wait.
func (b *Budget) CanEverExecute(primary, secondary *Manifest) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.feasible(primary, secondary, func(kind Kind) uint64 {
		return b.highestTotal[kind]
	})
}

// CanExecuteNow reports whether some single unit of every kind demanded by
// primary+secondary currently has enough remaining capacity. Unlike
// CanEverExecute this can flip from false to true as other tasks release
// resources.
func (b *Budget) CanExecuteNow(primary, secondary *Manifest) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.feasible(primary, secondary, b.currentMaxRemainingLocked)
}

func (b *Budget) feasible(primary, secondary *Manifest, ceiling func(Kind) uint64) bool {
	combined := Combine(orEmpty(primary), orEmpty(secondary))
	for _, e := range combined.Entries() {
		if e.Amount > ceiling(e.Kind) {
			return false
		}
	}
	return true
}

func (b *Budget) currentMaxRemainingLocked(kind Kind) uint64 {
	var max uint64
	for _, u := range b.units[kind] {
		if rem := u.remaining.Load(); rem > max {
			max = rem
		}
	}
	return max
}

func orEmpty(m *Manifest) *Manifest {
	if m == nil {
		return Empty
	}
	return m
}

// Clone returns a deep, independent snapshot: subsequent Allocate/Release
// calls on the clone never affect the original and vice versa.
func (b *Budget) Clone() *Budget {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clone := &Budget{logger: b.logger, highestTotal: b.highestTotal}
	clone.frozen.Store(b.frozen.Load())
	for k := 0; k < K; k++ {
		src := b.units[k]
		dst := make([]*resourceUnit, len(src))
		for i, u := range src {
			nu := &resourceUnit{total: u.total}
			nu.remaining.Store(u.remaining.Load())
			dst[i] = nu
		}
		clone.units[k] = dst
	}
	return clone
}
