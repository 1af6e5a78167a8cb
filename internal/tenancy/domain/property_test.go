package domain

import (
	"slices"
	"testing"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
)

func testProperty() Property {
	return Property{
		ID:      "property-1",
		OwnerID: "owner-1",
		Units: map[string]Unit{
			"unit-a": {Capacity: 2, Occupants: []string{"occupant-1"}},
			"unit-b": {Capacity: 1},
		},
		Occupants: []string{"occupant-1"},
	}
}

func TestValidateCapacity(t *testing.T) {
	p := testProperty()

	if err := ValidateCapacity(p, "unit-a"); err != nil {
		t.Fatalf("expected unit-a to have capacity: %v", err)
	}
	if err := ValidateCapacity(p, "missing"); !apperrors.IsCode(err, apperrors.CodeUnitNotFound) {
		t.Fatalf("expected unit not found, got %v", err)
	}

	full := Property{Units: map[string]Unit{"unit-a": {Capacity: 1, Occupants: []string{"occupant-1"}}}}
	if err := ValidateCapacity(full, "unit-a"); !apperrors.IsCode(err, apperrors.CodeUnitFull) {
		t.Fatalf("expected unit full, got %v", err)
	}
}

func TestValidateNotDuplicate(t *testing.T) {
	p := testProperty()
	if err := ValidateNotDuplicate(p, "occupant-2"); err != nil {
		t.Fatalf("expected occupant-2 to be new: %v", err)
	}
	if err := ValidateNotDuplicate(p, "occupant-1"); !apperrors.IsCode(err, apperrors.CodeAlreadyMember) {
		t.Fatalf("expected already member, got %v", err)
	}
}

func TestAddOccupantKeepsSetsSorted(t *testing.T) {
	p := testProperty()

	if err := p.AddOccupant("unit-a", "occupant-0"); err != nil {
		t.Fatalf("add occupant: %v", err)
	}
	if !slices.Equal(p.Units["unit-a"].Occupants, []string{"occupant-0", "occupant-1"}) {
		t.Fatalf("unexpected unit membership: %v", p.Units["unit-a"].Occupants)
	}
	if !slices.Equal(p.Occupants, []string{"occupant-0", "occupant-1"}) {
		t.Fatalf("unexpected union set: %v", p.Occupants)
	}

	// Repeating the add is harmless.
	if err := p.AddOccupant("unit-a", "occupant-0"); err != nil {
		t.Fatalf("repeat add: %v", err)
	}
	if len(p.Units["unit-a"].Occupants) != 2 || len(p.Occupants) != 2 {
		t.Fatal("expected repeated add to not duplicate")
	}

	if err := p.AddOccupant("missing", "occupant-3"); !apperrors.IsCode(err, apperrors.CodeUnitNotFound) {
		t.Fatalf("expected unit not found, got %v", err)
	}
}

func TestRemoveOccupant(t *testing.T) {
	p := testProperty()

	unitID, removed := p.RemoveOccupant("occupant-1")
	if !removed || unitID != "unit-a" {
		t.Fatalf("expected removal from unit-a, got %q removed=%t", unitID, removed)
	}
	if len(p.Units["unit-a"].Occupants) != 0 || len(p.Occupants) != 0 {
		t.Fatal("expected both sets to be empty after removal")
	}

	if _, removed := p.RemoveOccupant("occupant-1"); removed {
		t.Fatal("expected repeated removal to be a no-op")
	}
}

func TestRemoveOccupantToleratesUnionDrift(t *testing.T) {
	// Occupant present in the union set but in no unit.
	p := Property{
		Units:     map[string]Unit{"unit-a": {Capacity: 1}},
		Occupants: []string{"occupant-1"},
	}
	unitID, removed := p.RemoveOccupant("occupant-1")
	if !removed || unitID != "" {
		t.Fatalf("expected drift-tolerant removal, got %q removed=%t", unitID, removed)
	}
	if len(p.Occupants) != 0 {
		t.Fatal("expected union set to be cleaned up")
	}
}

func TestUnitOf(t *testing.T) {
	p := testProperty()
	unitID, ok := p.UnitOf("occupant-1")
	if !ok || unitID != "unit-a" {
		t.Fatalf("expected occupant-1 in unit-a, got %q ok=%t", unitID, ok)
	}
	if _, ok := p.UnitOf("occupant-2"); ok {
		t.Fatal("expected occupant-2 to be unplaced")
	}
}

func TestUnitIDsSorted(t *testing.T) {
	p := Property{Units: map[string]Unit{"unit-c": {}, "unit-a": {}, "unit-b": {}}}
	if !slices.Equal(p.UnitIDs(), []string{"unit-a", "unit-b", "unit-c"}) {
		t.Fatalf("unexpected order: %v", p.UnitIDs())
	}
}
