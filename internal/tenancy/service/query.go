package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// OccupantListing is one occupant's placement within a property, reconciled
// against the occupant's own profile.
type OccupantListing struct {
	OccupantID string
	UnitID     string
	// Linked is false when the occupant profile is missing or does not
	// record this property. The listing still reports the property-side
	// membership; repairing the drift is the backfill job's work.
	Linked bool
}

// Query is the read-side view over the relationship documents. It takes only
// the read surface of the store, so it cannot touch the relationship arrays
// even by accident.
type Query struct {
	reader storage.Reader
	tracer trace.Tracer
}

// NewQuery builds a read-side query service.
func NewQuery(reader storage.Reader) *Query {
	return &Query{
		reader: reader,
		tracer: otel.Tracer("github.com/louisbranch/leasehold/internal/tenancy/service"),
	}
}

// GetOccupantsForProperty lists the property's occupants per unit. The
// property document is authoritative for membership; each listing is
// cross-checked against the occupant profile and flagged when the reverse
// relationship is missing.
func (q *Query) GetOccupantsForProperty(ctx context.Context, propertyID string) ([]OccupantListing, error) {
	ctx, span := q.tracer.Start(ctx, "tenancy.GetOccupantsForProperty")
	defer span.End()

	if q.reader == nil {
		return nil, fmt.Errorf("reader is not configured")
	}
	propertyID = trimRequired(propertyID)
	if propertyID == "" {
		return nil, fmt.Errorf("property id is required")
	}

	record, err := q.reader.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "property not found")
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	property := record.Property

	var listings []OccupantListing
	for _, unitID := range property.UnitIDs() {
		for _, occupantID := range property.Units[unitID].Occupants {
			linked, err := q.isLinked(ctx, occupantID, propertyID)
			if err != nil {
				return nil, err
			}
			listings = append(listings, OccupantListing{
				OccupantID: occupantID,
				UnitID:     unitID,
				Linked:     linked,
			})
		}
	}
	return listings, nil
}

func (q *Query) isLinked(ctx context.Context, occupantID, propertyID string) (bool, error) {
	profile, err := q.reader.GetOccupantProfile(ctx, occupantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get occupant profile: %w", err)
	}
	return profile.Profile.HasProperty(propertyID), nil
}
