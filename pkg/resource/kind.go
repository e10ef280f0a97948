// Package resource implements the Resource Manifest and Resource Budget: the
// immutable description of what a task consumes, and the concurrent
// accountant that tracks how much of each resource kind remains across one
// or more physical units.
package resource

import "fmt"

// Kind is a closed enumeration of resource categories. The enumeration
// itself is the stable identity — adding a kind is a coordinated change
// across the whole budget array layout, not something callers extend.
type Kind int

const (
	CPUCores Kind = iota
	SystemMemory
	VideoMemory
	Drive

	numKinds
)

// K is the compile-time-constant count of resource kinds, used to size the
// fixed-width unit-selection arrays threaded through Pick/Allocate/Release.
const K = int(numKinds)

// String names a Kind for logging and error messages.
func (k Kind) String() string {
	switch k {
	case CPUCores:
		return "cpu_cores"
	case SystemMemory:
		return "system_memory"
	case VideoMemory:
		return "video_memory"
	case Drive:
		return "drive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < K
}

// SentinelAny marks a unit-selection slot as "free choice" — Pick and
// Allocate are free to choose any unit of that kind. Any other value pins
// selection to that exact unit index.
const SentinelAny = -1

// NewUnitSelection returns a [K]int-shaped slice pre-filled with
// SentinelAny, ready to pass as the in_out_units argument to Pick or
// Allocate.
func NewUnitSelection() []int {
	sel := make([]int, K)
	for i := range sel {
		sel[i] = SentinelAny
	}
	return sel
}
