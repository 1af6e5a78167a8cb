package domain

import (
	"slices"
	"time"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
)

// Unit is a sub-division of a property with a fixed occupant capacity.
type Unit struct {
	Capacity  int      `json:"capacity"`
	Occupants []string `json:"occupants"`
}

// Property is the denormalized property document: per-unit membership plus a
// top-level occupant set kept as the union across all units.
type Property struct {
	ID        string
	OwnerID   string
	Units     map[string]Unit
	Occupants []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnitIDs returns the property's unit ids in lexicographic order.
func (p Property) UnitIDs() []string {
	ids := make([]string, 0, len(p.Units))
	for unitID := range p.Units {
		ids = append(ids, unitID)
	}
	slices.Sort(ids)
	return ids
}

// UnitOf returns the id of the unit currently housing the occupant.
func (p Property) UnitOf(occupantID string) (string, bool) {
	for _, unitID := range p.UnitIDs() {
		if slices.Contains(p.Units[unitID].Occupants, occupantID) {
			return unitID, true
		}
	}
	return "", false
}

// HasOccupant reports membership against the denormalized top-level set.
func (p Property) HasOccupant(occupantID string) bool {
	return slices.Contains(p.Occupants, occupantID)
}

// ValidateCapacity checks that the unit exists and has an open slot.
func ValidateCapacity(p Property, unitID string) error {
	unit, ok := p.Units[unitID]
	if !ok {
		return apperrors.WithMetadata(
			apperrors.CodeUnitNotFound,
			"unit not found",
			map[string]string{"UnitID": unitID},
		)
	}
	if len(unit.Occupants) >= unit.Capacity {
		return apperrors.WithMetadata(
			apperrors.CodeUnitFull,
			"unit is at capacity",
			map[string]string{"UnitID": unitID},
		)
	}
	return nil
}

// ValidateNotDuplicate checks that the occupant is not already a member of
// the property. Coordinators treat AlreadyMember as an idempotent no-op
// success, which is what makes retried redemptions safe.
func ValidateNotDuplicate(p Property, occupantID string) error {
	if p.HasOccupant(occupantID) {
		return apperrors.WithMetadata(
			apperrors.CodeAlreadyMember,
			"occupant is already a member",
			map[string]string{"OccupantID": occupantID},
		)
	}
	return nil
}

// AddOccupant records the occupant in both the unit and the top-level set.
// It keeps both sets sorted and duplicate-free so repeated application is
// harmless.
func (p *Property) AddOccupant(unitID, occupantID string) error {
	unit, ok := p.Units[unitID]
	if !ok {
		return apperrors.WithMetadata(
			apperrors.CodeUnitNotFound,
			"unit not found",
			map[string]string{"UnitID": unitID},
		)
	}
	unit.Occupants = insertSorted(unit.Occupants, occupantID)
	p.Units[unitID] = unit
	p.Occupants = insertSorted(p.Occupants, occupantID)
	return nil
}

// RemoveOccupant drops the occupant from its unit and the top-level set,
// returning the unit it was removed from. The second return is false when the
// occupant was not a member anywhere.
func (p *Property) RemoveOccupant(occupantID string) (string, bool) {
	unitID, ok := p.UnitOf(occupantID)
	if ok {
		unit := p.Units[unitID]
		unit.Occupants = removeSorted(unit.Occupants, occupantID)
		p.Units[unitID] = unit
	}
	if !p.HasOccupant(occupantID) {
		return unitID, ok
	}
	p.Occupants = removeSorted(p.Occupants, occupantID)
	return unitID, true
}

func insertSorted(set []string, value string) []string {
	idx, found := slices.BinarySearch(set, value)
	if found {
		return set
	}
	return slices.Insert(set, idx, value)
}

func removeSorted(set []string, value string) []string {
	idx, found := slices.BinarySearch(set, value)
	if !found {
		return set
	}
	return slices.Delete(set, idx, idx+1)
}
