package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/event"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// removeOutcome carries one attempt's result out of the transaction closure.
type removeOutcome struct {
	unitID string
	// removed is false when the occupant was not a member; that case is an
	// idempotent no-op success and emits no event.
	removed bool
}

// RemoveOccupant is the symmetric teardown of a redemption: one transaction
// drops the occupant from its unit, the property's union set, the owner's
// accepted set, and the occupant profile, and appends a removal record.
// History is never rewritten. Removing a non-member is a no-op success so
// retried removals are safe.
func (s *Service) RemoveOccupant(ctx context.Context, ownerID, occupantID, propertyID string) error {
	ctx, span := s.tracer.Start(ctx, "tenancy.RemoveOccupant")
	defer span.End()

	if s.store == nil {
		return fmt.Errorf("store is not configured")
	}
	ownerID = trimRequired(ownerID)
	occupantID = trimRequired(occupantID)
	propertyID = trimRequired(propertyID)
	if ownerID == "" || occupantID == "" || propertyID == "" {
		return fmt.Errorf("owner id, occupant id, and property id are required")
	}

	operation := func() (removeOutcome, error) {
		outcome, err := s.removeOnce(ctx, ownerID, occupantID, propertyID)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return removeOutcome{}, err
			}
			return removeOutcome{}, backoff.Permanent(err)
		}
		return outcome, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = backoffInitialInterval
	outcome, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(removeAttempts),
	)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			err = apperrors.Wrap(apperrors.CodeContended, "removal contended, try again", err)
		}
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Bool("removed", outcome.removed))
	if outcome.removed {
		evt := event.New(event.TypeTenantRemoved, s.clock())
		evt.OwnerID = ownerID
		evt.OccupantID = occupantID
		evt.PropertyID = propertyID
		evt.UnitID = outcome.unitID
		s.dispatcher.Dispatch(ctx, evt)
	}
	return nil
}

func (s *Service) removeOnce(ctx context.Context, ownerID, occupantID, propertyID string) (removeOutcome, error) {
	var outcome removeOutcome
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := s.clock().UTC()

		propertyRecord, err := tx.GetProperty(ctx, propertyID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "property not found")
			}
			return fmt.Errorf("get property: %w", err)
		}
		property := propertyRecord.Property
		if property.OwnerID != ownerID {
			return apperrors.New(apperrors.CodeInviteInvalidTarget, "property does not belong to owner")
		}

		unitID, removed := property.RemoveOccupant(occupantID)
		if !removed {
			outcome = removeOutcome{}
			return nil
		}

		property.UpdatedAt = now
		propertyRecord.Property = property
		if err := tx.UpdateProperty(ctx, propertyRecord); err != nil {
			return err
		}

		if err := s.recordRemoval(ctx, tx, ownerID, occupantID, propertyID, unitID, now); err != nil {
			return err
		}

		if err := s.unlinkOccupant(ctx, tx, occupantID, propertyID, now); err != nil {
			return err
		}

		outcome = removeOutcome{unitID: unitID, removed: true}
		return nil
	})
	if err != nil {
		return removeOutcome{}, err
	}
	return outcome, nil
}

// recordRemoval shrinks the owner's accepted set and appends the removal
// record. acceptanceHistory retains the original acceptance.
func (s *Service) recordRemoval(ctx context.Context, tx storage.Tx, ownerID, occupantID, propertyID, unitID string, now time.Time) error {
	ownerRecord, err := tx.GetOwnerProfile(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get owner profile: %w", err)
		}
		// Drifted data: membership without an owner profile. The history
		// record below still documents the removal.
	} else {
		ownerRecord.Profile.Unaccept(occupantID)
		ownerRecord.Profile.UpdatedAt = now
		if err := tx.UpdateOwnerProfile(ctx, ownerRecord); err != nil {
			return err
		}
	}

	return tx.AppendHistory(ctx, domain.AcceptanceRecord{
		OwnerID:    ownerID,
		OccupantID: occupantID,
		PropertyID: propertyID,
		UnitID:     unitID,
		Kind:       domain.HistoryRemoved,
		RecordedAt: now,
	})
}

// unlinkOccupant drops the reverse relationship from the occupant profile.
func (s *Service) unlinkOccupant(ctx context.Context, tx storage.Tx, occupantID, propertyID string, now time.Time) error {
	occupantRecord, err := tx.GetOccupantProfile(ctx, occupantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get occupant profile: %w", err)
	}
	if !occupantRecord.Profile.RemoveRelationship(propertyID) {
		return nil
	}
	occupantRecord.Profile.UpdatedAt = now
	return tx.UpdateOccupantProfile(ctx, occupantRecord)
}
