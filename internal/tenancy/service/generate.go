package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// GenerateInviteInput describes an invite generation request.
type GenerateInviteInput struct {
	OwnerID    string
	PropertyID string
	UnitID     string // empty targets any unit with capacity
	TTL        time.Duration
}

// GenerateInvite validates the target property/unit, mints a pending invite
// with a collision-checked short code, and bumps the owner's sent counter.
// Short codes are retried on collision against other pending codes and
// widened after repeated collisions.
func (s *Service) GenerateInvite(ctx context.Context, input GenerateInviteInput) (domain.Invite, error) {
	ctx, span := s.tracer.Start(ctx, "tenancy.GenerateInvite")
	defer span.End()

	if s.store == nil {
		return domain.Invite{}, fmt.Errorf("store is not configured")
	}

	var invite domain.Invite
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		propertyRecord, err := tx.GetProperty(ctx, input.PropertyID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeInviteInvalidTarget, "property not found")
			}
			return fmt.Errorf("check property: %w", err)
		}
		property := propertyRecord.Property
		if property.OwnerID != input.OwnerID {
			return apperrors.New(apperrors.CodeInviteInvalidTarget, "property does not belong to owner")
		}
		if input.UnitID != "" {
			if _, ok := property.Units[input.UnitID]; !ok {
				return apperrors.WithMetadata(
					apperrors.CodeInviteInvalidTarget,
					"unit not found on property",
					map[string]string{"UnitID": input.UnitID},
				)
			}
		}

		invite, err = s.insertWithFreshCode(ctx, tx, input)
		if err != nil {
			return err
		}

		return s.bumpInvitesSent(ctx, tx, input.OwnerID)
	})
	if err != nil {
		return domain.Invite{}, err
	}

	span.SetAttributes(
		attribute.String("invite.id", invite.ID),
		attribute.String("property.id", invite.PropertyID),
	)
	return invite, nil
}

// insertWithFreshCode creates and inserts the invite, retrying the short
// code on pending-code collisions and widening after codeAttempts tries.
func (s *Service) insertWithFreshCode(ctx context.Context, tx storage.Tx, input GenerateInviteInput) (domain.Invite, error) {
	for attempt := 0; attempt < codeAttempts*2; attempt++ {
		length := domain.ShortCodeLength
		if attempt >= codeAttempts {
			length = domain.WidenedCodeLength
		}

		invite, err := domain.CreateInvite(domain.CreateInviteInput{
			OwnerID:    input.OwnerID,
			PropertyID: input.PropertyID,
			UnitID:     input.UnitID,
			TTL:        input.TTL,
		}, s.clock, s.idGenerator, func() (string, error) {
			return s.codeGenerator(length)
		})
		if err != nil {
			return domain.Invite{}, err
		}

		err = tx.PutInvite(ctx, invite)
		if err == nil {
			return invite, nil
		}
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		return domain.Invite{}, fmt.Errorf("persist invite: %w", err)
	}
	return domain.Invite{}, apperrors.New(apperrors.CodeInviteCodeExhausted, "could not mint a unique invite code")
}

// bumpInvitesSent lazily creates the owner profile and increments the sent
// counter. Counters are derived caches, never authoritative.
func (s *Service) bumpInvitesSent(ctx context.Context, tx storage.Tx, ownerID string) error {
	now := s.clock().UTC()
	record, err := tx.GetOwnerProfile(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tx.PutOwnerProfile(ctx, domain.OwnerProfile{
				ID:          ownerID,
				InvitesSent: 1,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return fmt.Errorf("get owner profile: %w", err)
	}

	record.Profile.InvitesSent++
	record.Profile.UpdatedAt = now
	if err := tx.UpdateOwnerProfile(ctx, record); err != nil {
		return fmt.Errorf("update owner profile: %w", err)
	}
	return nil
}
