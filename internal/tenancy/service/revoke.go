package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// RevokeInvite moves a pending invite to revoked. Revoking an invite that is
// already revoked or expired is a no-op success; revoking a redeemed invite
// is rejected because the membership it produced must be torn down through
// RemoveOccupant, never by rewriting the invite.
func (s *Service) RevokeInvite(ctx context.Context, ownerID, inviteID string) error {
	ctx, span := s.tracer.Start(ctx, "tenancy.RevokeInvite")
	defer span.End()

	if s.store == nil {
		return fmt.Errorf("store is not configured")
	}
	ownerID = trimRequired(ownerID)
	inviteID = trimRequired(inviteID)
	if ownerID == "" || inviteID == "" {
		return fmt.Errorf("owner id and invite id are required")
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		record, err := tx.GetInvite(ctx, inviteID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.New(apperrors.CodeInviteNotFound, "invite not found")
			}
			return fmt.Errorf("get invite: %w", err)
		}
		invite := record.Invite
		if invite.OwnerID != ownerID {
			return apperrors.New(apperrors.CodeInviteInvalidTarget, "invite does not belong to owner")
		}

		switch invite.Status {
		case domain.StatusRevoked, domain.StatusExpired:
			return nil
		case domain.StatusRedeemed:
			return apperrors.New(apperrors.CodeInviteAlreadyRedeemed, "invite was already redeemed")
		}

		now := s.clock().UTC()
		invite.Status = domain.StatusRevoked
		invite.UpdatedAt = now
		record.Invite = invite
		return tx.UpdateInvite(ctx, record)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("invite.id", inviteID))
	return nil
}
