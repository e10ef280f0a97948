package resource

import "fmt"

// Entry pairs a resource kind with the amount a workload declares it needs.
type Entry struct {
	Kind   Kind
	Amount uint64
}

// Manifest is the immutable, reference-shared description of what a task or
// environment consumes: an ordered set of entries (each kind at most once)
// plus a bitset of drive indices the workload will touch. Once constructed,
// a Manifest is never mutated — it is safe to share a single *Manifest
// across any number of concurrently scheduled tasks.
type Manifest struct {
	entries          []Entry
	accessedDriveMask uint64
}

// Empty is the zero-entry manifest: legal, and allocates nothing when used.
var Empty = &Manifest{}

// New builds a manifest from an arbitrary number of entries, failing if any
// kind is repeated. driveMask is the bitset of drive indices this workload
// will touch, independent of whether Drive appears among entries.
func New(driveMask uint64, entries ...Entry) (*Manifest, error) {
	seen := make(map[Kind]bool, len(entries))
	cloned := make([]Entry, len(entries))
	for i, e := range entries {
		if !e.Kind.valid() {
			return nil, fmt.Errorf("resource: invalid kind %v", e.Kind)
		}
		if seen[e.Kind] {
			return nil, fmt.Errorf("resource: duplicate kind %s in manifest", e.Kind)
		}
		seen[e.Kind] = true
		cloned[i] = e
	}
	return &Manifest{entries: cloned, accessedDriveMask: driveMask}, nil
}

// NewSingle builds a one-entry manifest.
func NewSingle(kind Kind, amount uint64) (*Manifest, error) {
	return New(0, Entry{Kind: kind, Amount: amount})
}

// NewPair builds a two-entry manifest.
func NewPair(kind1 Kind, amount1 uint64, kind2 Kind, amount2 uint64) (*Manifest, error) {
	return New(0, Entry{Kind: kind1, Amount: amount1}, Entry{Kind: kind2, Amount: amount2})
}

// NewTriple builds a three-entry manifest.
func NewTriple(kind1 Kind, amount1 uint64, kind2 Kind, amount2 uint64, kind3 Kind, amount3 uint64) (*Manifest, error) {
	return New(0, Entry{Kind: kind1, Amount: amount1}, Entry{Kind: kind2, Amount: amount2}, Entry{Kind: kind3, Amount: amount3})
}

// WithDriveMask returns a copy of m with its drive mask replaced; m itself
// is left untouched, preserving the published-immutable contract.
func (m *Manifest) WithDriveMask(mask uint64) *Manifest {
	cloned := make([]Entry, len(m.entries))
	copy(cloned, m.entries)
	return &Manifest{entries: cloned, accessedDriveMask: mask}
}

// Entries returns the manifest's entries. Callers must not mutate the
// returned slice; it aliases the manifest's internal storage.
func (m *Manifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Amount returns the amount declared for kind, or 0 if the manifest does not
// mention it.
func (m *Manifest) Amount(kind Kind) uint64 {
	if m == nil {
		return 0
	}
	for _, e := range m.entries {
		if e.Kind == kind {
			return e.Amount
		}
	}
	return 0
}

// AccessedDriveMask returns the bitset of drive indices this workload will
// touch.
func (m *Manifest) AccessedDriveMask() uint64 {
	if m == nil {
		return 0
	}
	return m.accessedDriveMask
}

// Combine sums a and b's amounts per kind and bit-ors their drive masks.
// Unlike New/NewSingle/..., Combine silently merges duplicate kinds across
// the two inputs — that's the whole point of combining an environment's
// manifest with a task's.
func Combine(a, b *Manifest) *Manifest {
	totals := make(map[Kind]uint64)
	order := make([]Kind, 0, K)
	addAll := func(m *Manifest) {
		for _, e := range m.Entries() {
			if _, ok := totals[e.Kind]; !ok {
				order = append(order, e.Kind)
			}
			totals[e.Kind] += e.Amount
		}
	}
	addAll(a)
	addAll(b)

	entries := make([]Entry, len(order))
	for i, k := range order {
		entries[i] = Entry{Kind: k, Amount: totals[k]}
	}
	return &Manifest{
		entries:           entries,
		accessedDriveMask: a.AccessedDriveMask() | b.AccessedDriveMask(),
	}
}
