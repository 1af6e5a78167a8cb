package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// ownerDoc is the JSON document stored per owner profile row. Counters live
// in dedicated columns so they stay cheap to increment.
type ownerDoc struct {
	OccupantsAccepted []string `json:"occupantsAccepted"`
}

// occupantDoc is the JSON document stored per occupant profile row.
type occupantDoc struct {
	Relationships []domain.Relationship `json:"relationships"`
}

// GetOwnerProfile fetches an owner profile by id.
func (s *Store) GetOwnerProfile(ctx context.Context, ownerID string) (storage.OwnerProfileRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.OwnerProfileRecord{}, fmt.Errorf("storage is not configured")
	}
	return getOwnerProfile(ctx, s.sqlDB, ownerID)
}

func (t *storeTx) GetOwnerProfile(ctx context.Context, ownerID string) (storage.OwnerProfileRecord, error) {
	return getOwnerProfile(ctx, t.q, ownerID)
}

// PutOwnerProfile inserts a new owner profile.
func (t *storeTx) PutOwnerProfile(ctx context.Context, profile domain.OwnerProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("owner id is required")
	}

	doc, err := json.Marshal(ownerDoc{OccupantsAccepted: profile.OccupantsAccepted})
	if err != nil {
		return fmt.Errorf("encode owner doc: %w", err)
	}
	_, err = t.q.ExecContext(
		ctx,
		`INSERT INTO owner_profiles (id, doc, invites_sent, invites_accepted, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		profile.ID,
		string(doc),
		profile.InvitesSent,
		profile.InvitesAccepted,
		toMillis(profile.CreatedAt),
		toMillis(profile.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put owner profile: %w", err)
	}
	return nil
}

// UpdateOwnerProfile applies a version-checked write to an owner profile.
func (t *storeTx) UpdateOwnerProfile(ctx context.Context, record storage.OwnerProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	profile := record.Profile
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("owner id is required")
	}

	doc, err := json.Marshal(ownerDoc{OccupantsAccepted: profile.OccupantsAccepted})
	if err != nil {
		return fmt.Errorf("encode owner doc: %w", err)
	}
	result, err := t.q.ExecContext(
		ctx,
		`UPDATE owner_profiles
		    SET doc = ?, invites_sent = ?, invites_accepted = ?,
		        updated_at = ?, version = version + 1
		  WHERE id = ? AND version = ?`,
		string(doc),
		profile.InvitesSent,
		profile.InvitesAccepted,
		toMillis(profile.UpdatedAt),
		profile.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update owner profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update owner profile rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

// GetOccupantProfile fetches an occupant profile by id.
func (s *Store) GetOccupantProfile(ctx context.Context, occupantID string) (storage.OccupantProfileRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.OccupantProfileRecord{}, fmt.Errorf("storage is not configured")
	}
	return getOccupantProfile(ctx, s.sqlDB, occupantID)
}

func (t *storeTx) GetOccupantProfile(ctx context.Context, occupantID string) (storage.OccupantProfileRecord, error) {
	return getOccupantProfile(ctx, t.q, occupantID)
}

// PutOccupantProfile inserts a new occupant profile.
func (t *storeTx) PutOccupantProfile(ctx context.Context, profile domain.OccupantProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("occupant id is required")
	}

	doc, err := json.Marshal(occupantDoc{Relationships: profile.Relationships})
	if err != nil {
		return fmt.Errorf("encode occupant doc: %w", err)
	}
	_, err = t.q.ExecContext(
		ctx,
		`INSERT INTO occupant_profiles (id, doc, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, 1)`,
		profile.ID,
		string(doc),
		toMillis(profile.CreatedAt),
		toMillis(profile.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put occupant profile: %w", err)
	}
	return nil
}

// UpdateOccupantProfile applies a version-checked write to an occupant profile.
func (t *storeTx) UpdateOccupantProfile(ctx context.Context, record storage.OccupantProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	profile := record.Profile
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("occupant id is required")
	}

	doc, err := json.Marshal(occupantDoc{Relationships: profile.Relationships})
	if err != nil {
		return fmt.Errorf("encode occupant doc: %w", err)
	}
	result, err := t.q.ExecContext(
		ctx,
		`UPDATE occupant_profiles
		    SET doc = ?, updated_at = ?, version = version + 1
		  WHERE id = ? AND version = ?`,
		string(doc),
		toMillis(profile.UpdatedAt),
		profile.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update occupant profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update occupant profile rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

func getOwnerProfile(ctx context.Context, q querier, ownerID string) (storage.OwnerProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.OwnerProfileRecord{}, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return storage.OwnerProfileRecord{}, fmt.Errorf("owner id is required")
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT id, doc, invites_sent, invites_accepted, created_at, updated_at, version
		   FROM owner_profiles WHERE id = ?`,
		ownerID,
	)

	var (
		profile   domain.OwnerProfile
		raw       string
		createdAt int64
		updatedAt int64
		version   int64
	)
	err := row.Scan(
		&profile.ID,
		&raw,
		&profile.InvitesSent,
		&profile.InvitesAccepted,
		&createdAt,
		&updatedAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OwnerProfileRecord{}, storage.ErrNotFound
		}
		return storage.OwnerProfileRecord{}, fmt.Errorf("scan owner profile: %w", err)
	}

	var doc ownerDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return storage.OwnerProfileRecord{}, fmt.Errorf("decode owner doc: %w", err)
	}
	profile.OccupantsAccepted = doc.OccupantsAccepted
	profile.CreatedAt = fromMillis(createdAt)
	profile.UpdatedAt = fromMillis(updatedAt)
	return storage.OwnerProfileRecord{Profile: profile, Version: version}, nil
}

func getOccupantProfile(ctx context.Context, q querier, occupantID string) (storage.OccupantProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.OccupantProfileRecord{}, err
	}
	occupantID = strings.TrimSpace(occupantID)
	if occupantID == "" {
		return storage.OccupantProfileRecord{}, fmt.Errorf("occupant id is required")
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT id, doc, created_at, updated_at, version
		   FROM occupant_profiles WHERE id = ?`,
		occupantID,
	)

	var (
		profile   domain.OccupantProfile
		raw       string
		createdAt int64
		updatedAt int64
		version   int64
	)
	err := row.Scan(&profile.ID, &raw, &createdAt, &updatedAt, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OccupantProfileRecord{}, storage.ErrNotFound
		}
		return storage.OccupantProfileRecord{}, fmt.Errorf("scan occupant profile: %w", err)
	}

	var doc occupantDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return storage.OccupantProfileRecord{}, fmt.Errorf("decode occupant doc: %w", err)
	}
	profile.Relationships = doc.Relationships
	profile.CreatedAt = fromMillis(createdAt)
	profile.UpdatedAt = fromMillis(updatedAt)
	return storage.OccupantProfileRecord{Profile: profile, Version: version}, nil
}
