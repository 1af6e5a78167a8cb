package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

const inviteColumns = `id, code, owner_id, property_id, unit_id, status,
       expires_at, created_at, updated_at, redeemed_by, redeemed_at, version`

// GetInvite fetches an invite record by its long id.
func (s *Store) GetInvite(ctx context.Context, inviteID string) (storage.InviteRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.InviteRecord{}, fmt.Errorf("storage is not configured")
	}
	return getInvite(ctx, s.sqlDB, inviteID)
}

// GetInviteByCode resolves a normalized short code, preferring pending.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (storage.InviteRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.InviteRecord{}, fmt.Errorf("storage is not configured")
	}
	return getInviteByCode(ctx, s.sqlDB, code)
}

func (t *storeTx) GetInvite(ctx context.Context, inviteID string) (storage.InviteRecord, error) {
	return getInvite(ctx, t.q, inviteID)
}

func (t *storeTx) GetInviteByCode(ctx context.Context, code string) (storage.InviteRecord, error) {
	return getInviteByCode(ctx, t.q, code)
}

// PutInvite inserts a new invite. A pending-code collision maps to
// storage.ErrAlreadyExists so the generator can retry with a fresh code.
func (t *storeTx) PutInvite(ctx context.Context, invite domain.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(invite.ID) == "" {
		return fmt.Errorf("invite id is required")
	}
	if strings.TrimSpace(invite.Code) == "" {
		return fmt.Errorf("invite code is required")
	}

	_, err := t.q.ExecContext(
		ctx,
		`INSERT INTO invites (
		   id, code, owner_id, property_id, unit_id, status,
		   expires_at, created_at, updated_at, redeemed_by, redeemed_at, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		invite.ID,
		invite.Code,
		invite.OwnerID,
		invite.PropertyID,
		invite.UnitID,
		domain.StatusLabel(invite.Status),
		toOptionalMillis(invite.ExpiresAt),
		toMillis(invite.CreatedAt),
		toMillis(invite.UpdatedAt),
		invite.RedeemedBy,
		toOptionalMillis(invite.RedeemedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put invite: %w", err)
	}
	return nil
}

// UpdateInvite applies a version-checked write to an invite row.
func (t *storeTx) UpdateInvite(ctx context.Context, record storage.InviteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	invite := record.Invite
	if strings.TrimSpace(invite.ID) == "" {
		return fmt.Errorf("invite id is required")
	}

	result, err := t.q.ExecContext(
		ctx,
		`UPDATE invites
		    SET unit_id = ?, status = ?, expires_at = ?, updated_at = ?,
		        redeemed_by = ?, redeemed_at = ?, version = version + 1
		  WHERE id = ? AND version = ?`,
		invite.UnitID,
		domain.StatusLabel(invite.Status),
		toOptionalMillis(invite.ExpiresAt),
		toMillis(invite.UpdatedAt),
		invite.RedeemedBy,
		toOptionalMillis(invite.RedeemedAt),
		invite.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invite rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

func getInvite(ctx context.Context, q querier, inviteID string) (storage.InviteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InviteRecord{}, err
	}
	inviteID = strings.TrimSpace(inviteID)
	if inviteID == "" {
		return storage.InviteRecord{}, fmt.Errorf("invite id is required")
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE id = ?`,
		inviteID,
	)
	return scanInvite(row)
}

func getInviteByCode(ctx context.Context, q querier, code string) (storage.InviteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InviteRecord{}, err
	}
	code = domain.NormalizeCode(code)
	if code == "" {
		return storage.InviteRecord{}, fmt.Errorf("invite code is required")
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT `+inviteColumns+`
		   FROM invites
		  WHERE code = ?
		  ORDER BY CASE WHEN status = 'PENDING' THEN 0 ELSE 1 END, updated_at DESC
		  LIMIT 1`,
		code,
	)
	return scanInvite(row)
}

func scanInvite(row *sql.Row) (storage.InviteRecord, error) {
	var (
		invite     domain.Invite
		status     string
		expiresAt  int64
		createdAt  int64
		updatedAt  int64
		redeemedAt int64
		version    int64
	)
	err := row.Scan(
		&invite.ID,
		&invite.Code,
		&invite.OwnerID,
		&invite.PropertyID,
		&invite.UnitID,
		&status,
		&expiresAt,
		&createdAt,
		&updatedAt,
		&invite.RedeemedBy,
		&redeemedAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InviteRecord{}, storage.ErrNotFound
		}
		return storage.InviteRecord{}, fmt.Errorf("scan invite: %w", err)
	}

	invite.Status = domain.StatusFromLabel(status)
	invite.ExpiresAt = fromOptionalMillis(expiresAt)
	invite.CreatedAt = fromMillis(createdAt)
	invite.UpdatedAt = fromMillis(updatedAt)
	invite.RedeemedAt = fromOptionalMillis(redeemedAt)
	return storage.InviteRecord{Invite: invite, Version: version}, nil
}
