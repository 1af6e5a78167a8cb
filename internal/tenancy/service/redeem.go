package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/event"
	"github.com/louisbranch/leasehold/internal/tenancy/invitelink"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// Placement reports where a redemption landed an occupant.
type Placement struct {
	PropertyID string
	UnitID     string
}

// redeemOutcome carries one attempt's result out of the transaction closure.
type redeemOutcome struct {
	placement Placement
	invite    domain.Invite
	// replay is true when the call was an idempotent no-op (same occupant
	// redeeming an already-redeemed code, or an existing member). No event
	// is emitted for replays.
	replay bool
}

// RedeemInvite consumes a pending invite and joins the occupant to the
// target unit. All four documents (invite, property, owner profile, occupant
// profile) are written in one transaction. Contention is retried with
// exponential backoff up to a fixed bound; validation failures are terminal
// and returned immediately. Retrying the same code with the same occupant is
// an idempotent success.
func (s *Service) RedeemInvite(ctx context.Context, code, occupantID string) (Placement, error) {
	ctx, span := s.tracer.Start(ctx, "tenancy.RedeemInvite")
	defer span.End()

	if s.store == nil {
		return Placement{}, fmt.Errorf("store is not configured")
	}
	occupantID = trimRequired(occupantID)
	if occupantID == "" {
		return Placement{}, fmt.Errorf("occupant id is required")
	}
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return Placement{}, apperrors.New(apperrors.CodeInviteNotFound, "invite code not found")
	}

	operation := func() (redeemOutcome, error) {
		outcome, err := s.redeemOnce(ctx, normalized, occupantID)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return redeemOutcome{}, err
			}
			return redeemOutcome{}, backoff.Permanent(err)
		}
		return outcome, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = backoffInitialInterval
	outcome, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(redeemAttempts),
	)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			err = apperrors.Wrap(apperrors.CodeContended, "redemption contended, try again", err)
		}
		span.RecordError(err)
		return Placement{}, err
	}

	span.SetAttributes(
		attribute.String("property.id", outcome.placement.PropertyID),
		attribute.String("unit.id", outcome.placement.UnitID),
		attribute.Bool("replay", outcome.replay),
	)

	if !outcome.replay {
		evt := event.New(event.TypeTenantAccepted, s.clock())
		evt.OwnerID = outcome.invite.OwnerID
		evt.OccupantID = occupantID
		evt.PropertyID = outcome.placement.PropertyID
		evt.UnitID = outcome.placement.UnitID
		evt.InviteID = outcome.invite.ID
		s.dispatcher.Dispatch(ctx, evt)
	}
	return outcome.placement, nil
}

// RedeemInviteWithGrant redeems through a signed link grant. The grant must
// bind the invite the code resolves to, its property, and the redeeming
// occupant; a forwarded link fails with a grant error before any write.
func (s *Service) RedeemInviteWithGrant(ctx context.Context, grant, code, occupantID string) (Placement, error) {
	ctx, span := s.tracer.Start(ctx, "tenancy.RedeemInviteWithGrant")
	defer span.End()

	if s.store == nil {
		return Placement{}, fmt.Errorf("store is not configured")
	}
	if s.verifier == nil {
		return Placement{}, fmt.Errorf("grant verifier is not configured")
	}
	occupantID = trimRequired(occupantID)
	if occupantID == "" {
		return Placement{}, fmt.Errorf("occupant id is required")
	}
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return Placement{}, apperrors.New(apperrors.CodeInviteNotFound, "invite code not found")
	}

	inviteRecord, err := s.store.GetInviteByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Placement{}, apperrors.New(apperrors.CodeInviteNotFound, "invite code not found")
		}
		return Placement{}, fmt.Errorf("get invite: %w", err)
	}

	expected := invitelink.Expectation{
		InviteID:   inviteRecord.Invite.ID,
		PropertyID: inviteRecord.Invite.PropertyID,
		OccupantID: occupantID,
	}
	if _, err := invitelink.Validate(grant, expected, *s.verifier); err != nil {
		span.RecordError(err)
		return Placement{}, err
	}

	return s.RedeemInvite(ctx, normalized, occupantID)
}

// redeemOnce runs one transactional redemption attempt. Capacity is always
// re-validated against a fresh snapshot, never cached across attempts.
func (s *Service) redeemOnce(ctx context.Context, code, occupantID string) (redeemOutcome, error) {
	var outcome redeemOutcome
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := s.clock().UTC()

		inviteRecord, err := tx.GetInviteByCode(ctx, code)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeInviteNotFound, "invite code not found")
			}
			return fmt.Errorf("get invite: %w", err)
		}
		invite := inviteRecord.Invite

		if err := domain.ValidateRedeemable(invite, now); err != nil {
			// A client may retry a network-ambiguous call; the same
			// occupant replaying an already-redeemed code gets the
			// recorded placement back instead of an error.
			if apperrors.IsCode(err, apperrors.CodeInviteAlreadyRedeemed) && invite.RedeemedBy == occupantID {
				outcome = redeemOutcome{
					placement: Placement{PropertyID: invite.PropertyID, UnitID: invite.UnitID},
					invite:    invite,
					replay:    true,
				}
				return nil
			}
			return err
		}

		propertyRecord, err := tx.GetProperty(ctx, invite.PropertyID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeInviteInvalidTarget, "invite property no longer exists")
			}
			return fmt.Errorf("get property: %w", err)
		}
		property := propertyRecord.Property

		// Existing membership makes the redemption a no-op success.
		if err := domain.ValidateNotDuplicate(property, occupantID); err != nil {
			if apperrors.IsCode(err, apperrors.CodeAlreadyMember) {
				unitID, _ := property.UnitOf(occupantID)
				outcome = redeemOutcome{
					placement: Placement{PropertyID: property.ID, UnitID: unitID},
					invite:    invite,
					replay:    true,
				}
				return nil
			}
			return err
		}

		unitID := invite.UnitID
		if unitID == "" {
			unitID, err = s.selector(property)
			if err != nil {
				return err
			}
		}
		if err := domain.ValidateCapacity(property, unitID); err != nil {
			return err
		}

		// Invite: terminal transition, pinned to the chosen unit so an
		// idempotent replay returns the same placement.
		invite.Status = domain.StatusRedeemed
		invite.RedeemedBy = occupantID
		invite.RedeemedAt = now
		invite.UnitID = unitID
		invite.UpdatedAt = now
		inviteRecord.Invite = invite
		if err := tx.UpdateInvite(ctx, inviteRecord); err != nil {
			return err
		}

		// Property: unit membership plus the denormalized union set.
		if err := property.AddOccupant(unitID, occupantID); err != nil {
			return err
		}
		property.UpdatedAt = now
		propertyRecord.Property = property
		if err := tx.UpdateProperty(ctx, propertyRecord); err != nil {
			return err
		}

		// Owner profile: accepted set, counter, append-only history.
		if err := s.recordAcceptance(ctx, tx, invite, occupantID, unitID, now); err != nil {
			return err
		}

		// Occupant profile: reverse relationship.
		if err := s.linkOccupant(ctx, tx, invite, occupantID, unitID, now); err != nil {
			return err
		}

		outcome = redeemOutcome{
			placement: Placement{PropertyID: property.ID, UnitID: unitID},
			invite:    invite,
		}
		return nil
	})
	if err != nil {
		return redeemOutcome{}, err
	}
	return outcome, nil
}

// recordAcceptance updates the owner's accepted set and counter and appends
// the acceptance record. The owner profile is created lazily when missing.
func (s *Service) recordAcceptance(ctx context.Context, tx storage.Tx, invite domain.Invite, occupantID, unitID string, now time.Time) error {
	ownerRecord, err := tx.GetOwnerProfile(ctx, invite.OwnerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get owner profile: %w", err)
		}
		profile := domain.OwnerProfile{
			ID:              invite.OwnerID,
			InvitesAccepted: 1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		profile.Accept(occupantID)
		if err := tx.PutOwnerProfile(ctx, profile); err != nil {
			return fmt.Errorf("put owner profile: %w", err)
		}
	} else {
		ownerRecord.Profile.Accept(occupantID)
		ownerRecord.Profile.InvitesAccepted++
		ownerRecord.Profile.UpdatedAt = now
		if err := tx.UpdateOwnerProfile(ctx, ownerRecord); err != nil {
			return err
		}
	}

	return tx.AppendHistory(ctx, domain.AcceptanceRecord{
		OwnerID:    invite.OwnerID,
		OccupantID: occupantID,
		PropertyID: invite.PropertyID,
		UnitID:     unitID,
		InviteID:   invite.ID,
		Kind:       domain.HistoryAccepted,
		RecordedAt: now,
	})
}

// linkOccupant records the reverse relationship on the occupant profile,
// creating the profile when missing.
func (s *Service) linkOccupant(ctx context.Context, tx storage.Tx, invite domain.Invite, occupantID, unitID string, now time.Time) error {
	rel := domain.Relationship{
		OwnerID:    invite.OwnerID,
		PropertyID: invite.PropertyID,
		UnitID:     unitID,
	}

	occupantRecord, err := tx.GetOccupantProfile(ctx, occupantID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get occupant profile: %w", err)
		}
		profile := domain.OccupantProfile{
			ID:        occupantID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		profile.AddRelationship(rel)
		if err := tx.PutOccupantProfile(ctx, profile); err != nil {
			return fmt.Errorf("put occupant profile: %w", err)
		}
		return nil
	}

	occupantRecord.Profile.AddRelationship(rel)
	occupantRecord.Profile.UpdatedAt = now
	return tx.UpdateOccupantProfile(ctx, occupantRecord)
}

func trimRequired(value string) string {
	return strings.TrimSpace(value)
}
