package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a version-checked write lost to a concurrent
// transaction. Coordinators retry on this error and nothing else.
var ErrConflict = errors.New("write conflict")

// ErrAlreadyExists indicates a uniqueness violation, e.g. inserting a pending
// invite whose code collides with another pending invite.
var ErrAlreadyExists = errors.New("record already exists")

// InviteRecord pairs an invite with the version its snapshot was read at.
type InviteRecord struct {
	Invite  domain.Invite
	Version int64
}

// PropertyRecord pairs a property document with its read version.
type PropertyRecord struct {
	Property domain.Property
	Version  int64
}

// OwnerProfileRecord pairs an owner profile with its read version.
type OwnerProfileRecord struct {
	Profile domain.OwnerProfile
	Version int64
}

// OccupantProfileRecord pairs an occupant profile with its read version.
type OccupantProfileRecord struct {
	Profile domain.OccupantProfile
	Version int64
}

// OwnerPage is one page of owner ids for batch sweeps.
type OwnerPage struct {
	OwnerIDs      []string
	NextPageToken string
}

// Reader is the read-only surface. Components outside the coordinators (the
// query service, the backfill reporter) receive only a Reader; the
// relationship arrays are writable solely through a Tx, which the store hands
// out inside InTx.
type Reader interface {
	GetInvite(ctx context.Context, inviteID string) (InviteRecord, error)
	// GetInviteByCode resolves a normalized short code, preferring the pending
	// invite when one exists and falling back to the most recently updated
	// invite with that code so redeemed codes stay resolvable for idempotent
	// replay.
	GetInviteByCode(ctx context.Context, code string) (InviteRecord, error)
	GetProperty(ctx context.Context, propertyID string) (PropertyRecord, error)
	// ListPropertyIDs returns the sorted ids of every property the owner
	// holds, so sweeps can reach documents no history record mentions.
	ListPropertyIDs(ctx context.Context, ownerID string) ([]string, error)
	GetOwnerProfile(ctx context.Context, ownerID string) (OwnerProfileRecord, error)
	GetOccupantProfile(ctx context.Context, occupantID string) (OccupantProfileRecord, error)
	ListAcceptanceHistory(ctx context.Context, ownerID string) ([]domain.AcceptanceRecord, error)
	ListOwnerIDs(ctx context.Context, pageSize int, pageToken string) (OwnerPage, error)
}

// Tx is the transactional writer. Updates are optimistic: each takes the
// record at the version it was read and fails with ErrConflict when another
// transaction committed first. Puts insert and fail with ErrAlreadyExists on
// key or pending-code collisions.
type Tx interface {
	Reader

	PutInvite(ctx context.Context, invite domain.Invite) error
	UpdateInvite(ctx context.Context, record InviteRecord) error

	PutProperty(ctx context.Context, property domain.Property) error
	UpdateProperty(ctx context.Context, record PropertyRecord) error

	PutOwnerProfile(ctx context.Context, profile domain.OwnerProfile) error
	UpdateOwnerProfile(ctx context.Context, record OwnerProfileRecord) error

	PutOccupantProfile(ctx context.Context, profile domain.OccupantProfile) error
	UpdateOccupantProfile(ctx context.Context, record OccupantProfileRecord) error

	AppendHistory(ctx context.Context, record domain.AcceptanceRecord) error
}

// Store is the transactional document store contract the coordinators build
// on. InTx runs fn inside one atomic transaction; when fn returns an error
// the transaction rolls back and the error propagates unchanged.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
