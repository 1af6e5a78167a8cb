package domain

import (
	"slices"
	"strings"
	"time"
)

// HistoryKind labels an acceptance-history record.
type HistoryKind string

const (
	// HistoryAccepted records an occupant joining a property.
	HistoryAccepted HistoryKind = "accepted"
	// HistoryRemoved records an occupant leaving a property.
	HistoryRemoved HistoryKind = "removed"
)

// AcceptanceRecord is one append-only audit entry on an owner's history.
// History is never rewritten; removal appends a record instead of deleting.
type AcceptanceRecord struct {
	Seq        int64
	OwnerID    string
	OccupantID string
	PropertyID string
	UnitID     string
	InviteID   string
	Kind       HistoryKind
	RecordedAt time.Time
}

// OwnerProfile is the owner's denormalized view of accepted occupants.
// The counters are derived caches; acceptance history is the source of truth
// and CurrentMembers can always recompute the set.
type OwnerProfile struct {
	ID                string
	OccupantsAccepted []string
	InvitesSent       int64
	InvitesAccepted   int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasAccepted reports whether the occupant is currently accepted.
func (o OwnerProfile) HasAccepted(occupantID string) bool {
	return slices.Contains(o.OccupantsAccepted, occupantID)
}

// Accept records an occupant as accepted. Repeated application is harmless.
func (o *OwnerProfile) Accept(occupantID string) {
	o.OccupantsAccepted = insertSorted(o.OccupantsAccepted, occupantID)
}

// Unaccept drops an occupant from the accepted set.
func (o *OwnerProfile) Unaccept(occupantID string) {
	o.OccupantsAccepted = removeSorted(o.OccupantsAccepted, occupantID)
}

// membershipKey identifies one occupant/property pairing in history replay.
type membershipKey struct {
	OccupantID string
	PropertyID string
}

// CurrentMembers replays acceptance history into the set of occupant/property
// pairings with an acceptance and no later removal. Records must be in append
// order.
func CurrentMembers(history []AcceptanceRecord) map[string][]string {
	members := make(map[string][]string)
	for propertyID, placements := range CurrentPlacements(history) {
		for occupantID := range placements {
			members[propertyID] = insertSorted(members[propertyID], occupantID)
		}
	}
	return members
}

// CurrentPlacements replays acceptance history into per-property placements:
// property id to occupant id to the unit recorded at acceptance. A later
// acceptance for the same pairing supersedes the earlier unit.
func CurrentPlacements(history []AcceptanceRecord) map[string]map[string]string {
	live := make(map[membershipKey]AcceptanceRecord)
	for _, record := range history {
		key := membershipKey{
			OccupantID: strings.TrimSpace(record.OccupantID),
			PropertyID: strings.TrimSpace(record.PropertyID),
		}
		if key.OccupantID == "" || key.PropertyID == "" {
			continue
		}
		switch record.Kind {
		case HistoryAccepted:
			live[key] = record
		case HistoryRemoved:
			delete(live, key)
		}
	}

	placements := make(map[string]map[string]string)
	for key, record := range live {
		units := placements[key.PropertyID]
		if units == nil {
			units = make(map[string]string)
			placements[key.PropertyID] = units
		}
		units[key.OccupantID] = record.UnitID
	}
	return placements
}
