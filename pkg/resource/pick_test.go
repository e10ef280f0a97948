package resource

import "testing"

// Pick is the read-only, tightest-fit counterpart to Allocate: it is used to
// verify a placement (e.g. before activating an environment) without
// committing to it. These tests exercise its documented behavior directly,
// since nothing under pkg/coordinator currently calls it.

func TestPickChoosesTightestFitAmongCandidateUnits(t *testing.T) {
	b := NewBudget(nil)
	if err := b.AddResource(VideoMemory, 16); err != nil {
		t.Fatalf("AddResource vram0: %v", err)
	}
	if err := b.AddResource(VideoMemory, 8); err != nil {
		t.Fatalf("AddResource vram1: %v", err)
	}

	demand := mustManifest(t, Entry{Kind: VideoMemory, Amount: 6})

	units := NewUnitSelection()
	if ok := b.Pick(units, demand); !ok {
		t.Fatalf("expected Pick to find a fit")
	}
	if units[VideoMemory] != 1 {
		t.Fatalf("expected Pick to choose the tighter-fitting 8GiB unit (index 1), got %v", units[VideoMemory])
	}

	if got := b.QueryResourceMaximum(VideoMemory); got != 16 {
		t.Fatalf("Pick must never mutate the budget; highest_total changed to %v", got)
	}
	if rem := b.units[VideoMemory][1].remaining.Load(); rem != 8 {
		t.Fatalf("Pick must never deduct from remaining capacity, got %v", rem)
	}
}

func TestPickHonorsPinnedUnitAndRejectsWhenFull(t *testing.T) {
	b := NewBudget(nil)
	if err := b.AddResource(VideoMemory, 8); err != nil {
		t.Fatalf("AddResource vram0: %v", err)
	}
	if err := b.AddResource(VideoMemory, 8); err != nil {
		t.Fatalf("AddResource vram1: %v", err)
	}

	// Fill unit 0 by consuming all of its capacity first.
	pinDemand := mustManifest(t, Entry{Kind: VideoMemory, Amount: 8})
	pinUnits := NewUnitSelection()
	if ok := b.Allocate(pinUnits, pinDemand); !ok {
		t.Fatalf("expected initial allocation to succeed")
	}
	if pinUnits[VideoMemory] != 0 {
		t.Fatalf("expected the pinning allocation to land on unit 0, got %v", pinUnits[VideoMemory])
	}

	demand := mustManifest(t, Entry{Kind: VideoMemory, Amount: 1})

	pinned := NewUnitSelection()
	pinned[VideoMemory] = 0
	if ok := b.Pick(pinned, demand); ok {
		t.Fatalf("expected Pick to reject a pinned unit with insufficient remaining capacity")
	}
	if pinned[VideoMemory] != 0 {
		t.Fatalf("expected units to be left at its pre-call pinned value on failure, got %v", pinned[VideoMemory])
	}
}

func TestPickLeavesUnitsUnchangedOnFailure(t *testing.T) {
	b := NewBudget(nil)
	if err := b.AddResource(VideoMemory, 4); err != nil {
		t.Fatalf("AddResource vram: %v", err)
	}
	if err := b.AddResource(CPUCores, 4); err != nil {
		t.Fatalf("AddResource cpu: %v", err)
	}

	// cpu_cores fits, video_memory does not: the whole call must fail and
	// units must come back exactly as given, including the cpu_cores slot
	// that a naive implementation might have already filled in before
	// reaching the infeasible video_memory entry.
	demand := mustManifest(t, Entry{Kind: CPUCores, Amount: 2}, Entry{Kind: VideoMemory, Amount: 100})

	units := NewUnitSelection()
	if ok := b.Pick(units, demand); ok {
		t.Fatalf("expected Pick to fail when any entry is infeasible")
	}
	for k, idx := range units {
		if idx != SentinelAny {
			t.Fatalf("expected units to remain all-SentinelAny on failure, got kind %d = %v", k, idx)
		}
	}
}

func TestPickReusesPinnedUnitAcrossRepeatedKindInSecondaryManifest(t *testing.T) {
	b := NewBudget(nil)
	if err := b.AddResource(SystemMemory, 16); err != nil {
		t.Fatalf("AddResource mem0: %v", err)
	}
	if err := b.AddResource(SystemMemory, 16); err != nil {
		t.Fatalf("AddResource mem1: %v", err)
	}

	primary := mustManifest(t, Entry{Kind: SystemMemory, Amount: 4})
	secondary := mustManifest(t, Entry{Kind: SystemMemory, Amount: 4})

	units := NewUnitSelection()
	if ok := b.Pick(units, primary, secondary); !ok {
		t.Fatalf("expected Pick to succeed across primary+secondary")
	}
	// Both entries are for the same kind, so the second pass must reuse
	// whatever unit the first pass already pinned rather than re-scanning.
	if units[SystemMemory] == SentinelAny {
		t.Fatalf("expected a concrete unit to be chosen")
	}
}

func TestPickSumsRepeatedKindDemandAcrossManifests(t *testing.T) {
	b := NewBudget(nil)
	if err := b.AddResource(SystemMemory, 10); err != nil {
		t.Fatalf("AddResource mem: %v", err)
	}

	primary := mustManifest(t, Entry{Kind: SystemMemory, Amount: 6})
	secondary := mustManifest(t, Entry{Kind: SystemMemory, Amount: 6})

	units := NewUnitSelection()
	if ok := b.Pick(units, primary, secondary); ok {
		t.Fatalf("expected Pick to reject combined demand (12) against the only unit's capacity (10)")
	}
	for k, idx := range units {
		if idx != SentinelAny {
			t.Fatalf("expected units to remain all-SentinelAny on failure, got kind %d = %v", k, idx)
		}
	}
}
