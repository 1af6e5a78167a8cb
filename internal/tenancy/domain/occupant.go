package domain

import (
	"slices"
	"time"
)

// Relationship ties an occupant to one owner/property/unit.
type Relationship struct {
	OwnerID    string `json:"ownerId"`
	PropertyID string `json:"propertyId"`
	UnitID     string `json:"unitId"`
}

// OccupantProfile is the occupant's denormalized view of its memberships.
type OccupantProfile struct {
	ID            string
	Relationships []Relationship
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Properties returns the sorted set of property ids the occupant belongs to.
func (o OccupantProfile) Properties() []string {
	var ids []string
	for _, rel := range o.Relationships {
		ids = insertSorted(ids, rel.PropertyID)
	}
	return ids
}

// HasProperty reports whether the occupant has a relationship with the property.
func (o OccupantProfile) HasProperty(propertyID string) bool {
	return slices.ContainsFunc(o.Relationships, func(rel Relationship) bool {
		return rel.PropertyID == propertyID
	})
}

// AddRelationship records a membership, replacing any stale record for the
// same property so repeated application is harmless.
func (o *OccupantProfile) AddRelationship(rel Relationship) {
	o.RemoveRelationship(rel.PropertyID)
	o.Relationships = append(o.Relationships, rel)
	slices.SortFunc(o.Relationships, func(a, b Relationship) int {
		if a.PropertyID < b.PropertyID {
			return -1
		}
		if a.PropertyID > b.PropertyID {
			return 1
		}
		return 0
	})
}

// RemoveRelationship drops the membership for the given property.
func (o *OccupantProfile) RemoveRelationship(propertyID string) bool {
	before := len(o.Relationships)
	o.Relationships = slices.DeleteFunc(o.Relationships, func(rel Relationship) bool {
		return rel.PropertyID == propertyID
	})
	return len(o.Relationships) != before
}
