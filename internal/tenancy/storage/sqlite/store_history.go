package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

// AppendHistory appends one acceptance-history record. History rows are
// never updated or deleted.
func (t *storeTx) AppendHistory(ctx context.Context, record domain.AcceptanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(record.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(record.OccupantID) == "" {
		return fmt.Errorf("occupant id is required")
	}
	if strings.TrimSpace(record.PropertyID) == "" {
		return fmt.Errorf("property id is required")
	}
	if record.Kind != domain.HistoryAccepted && record.Kind != domain.HistoryRemoved {
		return fmt.Errorf("history kind %q is invalid", record.Kind)
	}

	_, err := t.q.ExecContext(
		ctx,
		`INSERT INTO acceptance_history (
		   owner_id, occupant_id, property_id, unit_id, invite_id, kind, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.OwnerID,
		record.OccupantID,
		record.PropertyID,
		record.UnitID,
		record.InviteID,
		string(record.Kind),
		toMillis(record.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListAcceptanceHistory returns an owner's history in append order.
func (s *Store) ListAcceptanceHistory(ctx context.Context, ownerID string) ([]domain.AcceptanceRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return listAcceptanceHistory(ctx, s.sqlDB, ownerID)
}

func (t *storeTx) ListAcceptanceHistory(ctx context.Context, ownerID string) ([]domain.AcceptanceRecord, error) {
	return listAcceptanceHistory(ctx, t.q, ownerID)
}

// ListOwnerIDs returns a lexicographic page of owner profile ids. The page
// token is the last owner id of the previous page.
func (s *Store) ListOwnerIDs(ctx context.Context, pageSize int, pageToken string) (storage.OwnerPage, error) {
	if s == nil || s.sqlDB == nil {
		return storage.OwnerPage{}, fmt.Errorf("storage is not configured")
	}
	return listOwnerIDs(ctx, s.sqlDB, pageSize, pageToken)
}

func (t *storeTx) ListOwnerIDs(ctx context.Context, pageSize int, pageToken string) (storage.OwnerPage, error) {
	return listOwnerIDs(ctx, t.q, pageSize, pageToken)
}

func listAcceptanceHistory(ctx context.Context, q querier, ownerID string) ([]domain.AcceptanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	rows, err := q.QueryContext(
		ctx,
		`SELECT seq, owner_id, occupant_id, property_id, unit_id, invite_id, kind, recorded_at
		   FROM acceptance_history
		  WHERE owner_id = ?
		  ORDER BY seq ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list acceptance history: %w", err)
	}
	defer rows.Close()

	var history []domain.AcceptanceRecord
	for rows.Next() {
		var (
			record     domain.AcceptanceRecord
			kind       string
			recordedAt int64
		)
		if err := rows.Scan(
			&record.Seq,
			&record.OwnerID,
			&record.OccupantID,
			&record.PropertyID,
			&record.UnitID,
			&record.InviteID,
			&kind,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan acceptance history: %w", err)
		}
		record.Kind = domain.HistoryKind(kind)
		record.RecordedAt = fromMillis(recordedAt)
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read acceptance history: %w", err)
	}
	return history, nil
}

func listOwnerIDs(ctx context.Context, q querier, pageSize int, pageToken string) (storage.OwnerPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.OwnerPage{}, err
	}
	if pageSize <= 0 {
		return storage.OwnerPage{}, fmt.Errorf("page size must be greater than zero")
	}

	rows, err := q.QueryContext(
		ctx,
		`SELECT id FROM owner_profiles WHERE id > ? ORDER BY id ASC LIMIT ?`,
		pageToken,
		pageSize+1,
	)
	if err != nil {
		return storage.OwnerPage{}, fmt.Errorf("list owner ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return storage.OwnerPage{}, fmt.Errorf("scan owner id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return storage.OwnerPage{}, fmt.Errorf("read owner ids: %w", err)
	}

	page := storage.OwnerPage{OwnerIDs: ids}
	if len(ids) > pageSize {
		page.OwnerIDs = ids[:pageSize]
		page.NextPageToken = ids[pageSize-1]
	}
	return page, nil
}
