package domain

import (
	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
)

// UnitSelector picks a unit for an invite that does not pin one. Selection
// must be deterministic for a given property snapshot so retried redemptions
// land on the same unit.
type UnitSelector func(p Property) (string, error)

// FirstAvailable selects the lexicographically smallest unit id with an open
// slot. This is the default strategy.
func FirstAvailable(p Property) (string, error) {
	for _, unitID := range p.UnitIDs() {
		unit := p.Units[unitID]
		if len(unit.Occupants) < unit.Capacity {
			return unitID, nil
		}
	}
	return "", apperrors.New(apperrors.CodeNoCapacity, "no unit has available capacity")
}

// LeastLoaded selects the unit with the most open slots, breaking ties by
// lexicographic unit id.
func LeastLoaded(p Property) (string, error) {
	bestID := ""
	bestFree := 0
	for _, unitID := range p.UnitIDs() {
		unit := p.Units[unitID]
		free := unit.Capacity - len(unit.Occupants)
		if free > bestFree {
			bestID = unitID
			bestFree = free
		}
	}
	if bestID == "" {
		return "", apperrors.New(apperrors.CodeNoCapacity, "no unit has available capacity")
	}
	return bestID, nil
}
