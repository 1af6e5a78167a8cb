// Package domain holds the tenancy entities and the pure relationship
// validators shared by the coordinators.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/leasehold/internal/platform/errors"
	"github.com/louisbranch/leasehold/internal/platform/id"
)

var (
	// ErrEmptyOwnerID indicates a missing owner ID.
	ErrEmptyOwnerID = apperrors.New(apperrors.CodeInviteInvalidTarget, "owner id is required")
	// ErrEmptyPropertyID indicates a missing property ID.
	ErrEmptyPropertyID = apperrors.New(apperrors.CodeInviteInvalidTarget, "property id is required")
)

// Status represents the lifecycle status of an invite.
type Status int

const (
	// StatusUnspecified represents an invalid invite status.
	StatusUnspecified Status = iota
	// StatusPending indicates an invite is available to redeem.
	StatusPending
	// StatusRedeemed indicates an invite has been redeemed.
	StatusRedeemed
	// StatusRevoked indicates an invite has been revoked.
	StatusRevoked
	// StatusExpired indicates an invite passed its deadline unredeemed.
	StatusExpired
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRedeemed, StatusRevoked, StatusExpired:
		return true
	default:
		return false
	}
}

// Invite grants one redemption right to join a property, optionally pinned
// to a specific unit. ID doubles as the opaque long identifier used by
// link-based invites; Code is the short human-enterable form.
type Invite struct {
	ID         string
	Code       string
	OwnerID    string
	PropertyID string
	UnitID     string // empty means any unit with capacity
	Status     Status
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	RedeemedBy string // occupant id, set only on redemption
	RedeemedAt time.Time
}

// CreateInviteInput describes the metadata needed to create an invite.
type CreateInviteInput struct {
	OwnerID    string
	PropertyID string
	UnitID     string
	TTL        time.Duration
}

// CreateInvite creates a new pending invite with a generated long ID, a short
// code, and timestamps.
func CreateInvite(input CreateInviteInput, now func() time.Time, idGenerator func() (string, error), codeGenerator func() (string, error)) (Invite, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if codeGenerator == nil {
		codeGenerator = func() (string, error) { return NewShortCode(ShortCodeLength) }
	}

	normalized, err := NormalizeCreateInviteInput(input)
	if err != nil {
		return Invite{}, err
	}

	inviteID, err := idGenerator()
	if err != nil {
		return Invite{}, fmt.Errorf("generate invite id: %w", err)
	}
	code, err := codeGenerator()
	if err != nil {
		return Invite{}, fmt.Errorf("generate invite code: %w", err)
	}

	createdAt := now().UTC()
	invite := Invite{
		ID:         inviteID,
		Code:       code,
		OwnerID:    normalized.OwnerID,
		PropertyID: normalized.PropertyID,
		UnitID:     normalized.UnitID,
		Status:     StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if normalized.TTL > 0 {
		invite.ExpiresAt = createdAt.Add(normalized.TTL)
	}
	return invite, nil
}

// NormalizeCreateInviteInput trims and validates invite input metadata.
func NormalizeCreateInviteInput(input CreateInviteInput) (CreateInviteInput, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return CreateInviteInput{}, ErrEmptyOwnerID
	}
	input.PropertyID = strings.TrimSpace(input.PropertyID)
	if input.PropertyID == "" {
		return CreateInviteInput{}, ErrEmptyPropertyID
	}
	input.UnitID = strings.TrimSpace(input.UnitID)
	return input, nil
}

// ValidateRedeemable checks that an invite can still be redeemed at the given
// instant. It is pure: expiry is evaluated against the supplied time, never
// the wall clock.
func ValidateRedeemable(invite Invite, now time.Time) error {
	switch invite.Status {
	case StatusPending:
		if !invite.ExpiresAt.IsZero() && !invite.ExpiresAt.After(now) {
			return apperrors.New(apperrors.CodeInviteExpired, "invite is expired")
		}
		return nil
	case StatusRedeemed:
		return apperrors.WithMetadata(
			apperrors.CodeInviteAlreadyRedeemed,
			"invite is already redeemed",
			map[string]string{"RedeemedBy": invite.RedeemedBy},
		)
	case StatusRevoked:
		return apperrors.New(apperrors.CodeInviteRevoked, "invite is revoked")
	case StatusExpired:
		return apperrors.New(apperrors.CodeInviteExpired, "invite is expired")
	default:
		return apperrors.New(apperrors.CodeUnknown, "invite status is invalid")
	}
}

// StatusLabel returns the string label for an invite status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusRedeemed:
		return "REDEEMED"
	case StatusRevoked:
		return "REVOKED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "REDEEMED":
		return StatusRedeemed
	case "REVOKED":
		return StatusRevoked
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnspecified
	}
}
