package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
)

func TestGenerateInviteSuccess(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())
	svc := newTestService(store, nil)

	invite, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
		UnitID:     "unit-a",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}

	if invite.Status != domain.StatusPending {
		t.Fatalf("expected pending invite, got %v", invite.Status)
	}
	if invite.UnitID != "unit-a" {
		t.Fatalf("expected pinned unit, got %s", invite.UnitID)
	}
	if !invite.ExpiresAt.Equal(fixedTime.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", invite.ExpiresAt)
	}

	stored, err := store.GetInvite(context.Background(), invite.ID)
	if err != nil {
		t.Fatalf("get stored invite: %v", err)
	}
	if stored.Invite.Code != invite.Code {
		t.Fatalf("expected stored code %s, got %s", invite.Code, stored.Invite.Code)
	}

	owner, err := store.GetOwnerProfile(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("get owner profile: %v", err)
	}
	if owner.Profile.InvitesSent != 1 {
		t.Fatalf("expected 1 invite sent, got %d", owner.Profile.InvitesSent)
	}
}

func TestGenerateInviteUnknownProperty(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)

	_, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "missing",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}

func TestGenerateInviteForeignProperty(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())
	svc := newTestService(store, nil)

	_, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-2",
		PropertyID: "property-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}

func TestGenerateInviteUnknownUnit(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())
	svc := newTestService(store, nil)

	_, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
		UnitID:     "unit-z",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}

func TestGenerateInviteRetriesCodeCollisions(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())

	// The first generated code collides with an existing pending invite.
	store.seedInvite(domain.Invite{
		ID:         "existing",
		Code:       "CODE0001",
		OwnerID:    "owner-1",
		PropertyID: "property-1",
		Status:     domain.StatusPending,
	})
	svc := newTestService(store, nil)

	invite, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
	})
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}
	if invite.Code != "CODE0002" {
		t.Fatalf("expected the second code after a collision, got %s", invite.Code)
	}
}

func TestGenerateInviteWidensAfterRepeatedCollisions(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())
	svc := newTestService(store, nil, WithCodeGenerator(func(length int) (string, error) {
		// Collides at the short length, succeeds once widened.
		if length == domain.ShortCodeLength {
			return "TAKEN222", nil
		}
		return "WIDECODE22", nil
	}))
	store.seedInvite(domain.Invite{
		ID:     "existing",
		Code:   "TAKEN222",
		Status: domain.StatusPending,
	})

	invite, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
	})
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}
	if len(invite.Code) != domain.WidenedCodeLength {
		t.Fatalf("expected widened code, got %q", invite.Code)
	}
}

func TestGenerateInviteCodeSpaceExhausted(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())
	svc := newTestService(store, nil, WithCodeGenerator(func(length int) (string, error) {
		code := "SAMECODE22"
		return code[:length], nil
	}))
	store.seedInvite(domain.Invite{ID: "short", Code: "SAMECODE", Status: domain.StatusPending})
	store.seedInvite(domain.Invite{ID: "wide", Code: "SAMECODE22", Status: domain.StatusPending})

	_, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeInviteCodeExhausted) {
		t.Fatalf("expected code exhausted, got %v", err)
	}
}

func TestGenerateInviteRedeemedCodeDoesNotCollide(t *testing.T) {
	store := newFakeStore()
	store.seedProperty(twoUnitProperty())

	// Same code as the first generated one, but no longer pending.
	store.seedInvite(domain.Invite{
		ID:     "existing",
		Code:   "CODE0001",
		Status: domain.StatusRedeemed,
	})
	svc := newTestService(store, nil)

	invite, err := svc.GenerateInvite(context.Background(), GenerateInviteInput{
		OwnerID:    "owner-1",
		PropertyID: "property-1",
	})
	if err != nil {
		t.Fatalf("generate invite: %v", err)
	}
	if invite.Code != "CODE0001" {
		t.Fatalf("expected non-pending code to be reusable, got %s", invite.Code)
	}
}
