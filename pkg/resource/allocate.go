package resource

// This file implements Pick, Allocate, and Release — the three operations
// that move real reservations through a Budget. Grounded in
// ResourceBudget.Allocate.cpp's ReversibleBudgeteer: Allocate deducts
// primary's entries then secondary's, tracking every successful deduction
// so a single reverse-order unwind can roll back a partial failure without
// a separate rollback path per manifest.

// Pick finds, for each kind demanded by primary/secondary, a unit able to
// satisfy the summed demand, honoring any pre-pinned entries in units
// (SentinelAny means free choice). Pick never mutates the budget — it is
// read-only look-ahead, used to verify a placement (e.g. before activating
// an environment) without committing to it.
//
// Selection policy is tightest fit: among units with enough remaining
// capacity, Pick chooses the one whose post-reservation remaining would be
// smallest, ties broken by lowest unit index. units is only updated on
// success; on failure, it is returned to its pre-call pinned values verbatim.
func (b *Budget) Pick(units []int, manifests ...*Manifest) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scratch := make([]int, len(units))
	copy(scratch, units)

	// committed tracks demand already assigned to scratch[kind]'s unit by an
	// earlier entry of the same kind in this call, so a kind split across
	// primary and secondary is checked against their sum, not independently
	// against the unit's full remaining capacity twice over.
	var committed [K]uint64

	// demand sums each kind's amount across all manifests, so a free-choice
	// slot is filled with a unit able to hold the whole demand for that kind.
	var demand [K]uint64
	for _, m := range manifests {
		for _, e := range m.Entries() {
			demand[e.Kind] += e.Amount
		}
	}

	for _, m := range manifests {
		if m == nil {
			continue
		}
		for _, e := range m.Entries() {
			if e.Amount == 0 {
				continue
			}
			pool := b.units[e.Kind]
			pinned := scratch[e.Kind]

			if pinned != SentinelAny {
				need := committed[e.Kind] + e.Amount
				if pinned < 0 || pinned >= len(pool) || pool[pinned].remaining.Load() < need {
					return false
				}
				committed[e.Kind] = need
				continue
			}

			bestIdx := -1
			var bestSlack uint64
			for i, u := range pool {
				rem := u.remaining.Load()
				if rem < demand[e.Kind] {
					continue
				}
				slack := rem - demand[e.Kind]
				if bestIdx == -1 || slack < bestSlack {
					bestIdx = i
					bestSlack = slack
				}
			}
			if bestIdx == -1 {
				return false
			}
			scratch[e.Kind] = bestIdx
			committed[e.Kind] = e.Amount
		}
	}

	copy(units, scratch)
	return true
}

type deduction struct {
	kind   Kind
	index  int
	amount uint64
}

// tryDeduct attempts a single compare-and-swap decrement of amount from u's
// remaining. It loops only to retry against concurrent modification, never
// to wait — each iteration either succeeds or observes remaining < amount
// and fails outright, guaranteeing progress under contention.
func tryDeduct(u *resourceUnit, amount uint64) bool {
	for {
		cur := u.remaining.Load()
		if cur < amount {
			return false
		}
		if u.remaining.CompareAndSwap(cur, cur-amount) {
			return true
		}
	}
}

// Allocate subtracts primary's (then secondary's) entries from chosen
// units, recording the choice into units, or leaves the budget completely
// unchanged and returns false. Pinned slots in units (including ones this
// same call just filled in for an earlier entry of the same kind) are
// reused rather than re-scanned — this is what guarantees a kind appearing
// in both primary and secondary draws from a single unit.
//
// Unlike Pick, Allocate does not hunt for the tightest-fitting unit: it
// scans in unit order and commits to the first one with enough remaining
// capacity, trading placement optimality for a simple, always-progressing
// compare-and-swap loop under real contention.
func (b *Budget) Allocate(units []int, manifests ...*Manifest) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var deductions []deduction
	rollback := func() {
		for i := len(deductions) - 1; i >= 0; i-- {
			d := deductions[i]
			b.units[d.kind][d.index].remaining.Add(d.amount)
		}
	}

	for _, m := range manifests {
		if m == nil {
			continue
		}
		for _, e := range m.Entries() {
			if e.Amount == 0 {
				continue
			}
			pool := b.units[e.Kind]
			pinned := units[e.Kind]

			if pinned != SentinelAny {
				if pinned < 0 || pinned >= len(pool) || !tryDeduct(pool[pinned], e.Amount) {
					rollback()
					return false
				}
				deductions = append(deductions, deduction{kind: e.Kind, index: pinned, amount: e.Amount})
				continue
			}

			chosen := -1
			for i, u := range pool {
				if tryDeduct(u, e.Amount) {
					chosen = i
					break
				}
			}
			if chosen == -1 {
				rollback()
				return false
			}
			units[e.Kind] = chosen
			deductions = append(deductions, deduction{kind: e.Kind, index: chosen, amount: e.Amount})
		}
	}

	return true
}

// Release adds back primary's (then secondary's) entry amounts onto the
// units recorded in units. Release never fails; order within or across
// manifests does not matter since every add is independent.
func (b *Budget) Release(units []int, manifests ...*Manifest) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, m := range manifests {
		if m == nil {
			continue
		}
		for _, e := range m.Entries() {
			if e.Amount == 0 {
				continue
			}
			idx := units[e.Kind]
			pool := b.units[e.Kind]
			if idx < 0 || idx >= len(pool) {
				continue
			}
			pool[idx].remaining.Add(e.Amount)
		}
	}
}
