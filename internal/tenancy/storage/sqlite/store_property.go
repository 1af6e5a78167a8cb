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

// propertyDoc is the JSON document stored per property row.
type propertyDoc struct {
	Units     map[string]domain.Unit `json:"units"`
	Occupants []string               `json:"occupants"`
}

// GetProperty fetches a property document by id.
func (s *Store) GetProperty(ctx context.Context, propertyID string) (storage.PropertyRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.PropertyRecord{}, fmt.Errorf("storage is not configured")
	}
	return getProperty(ctx, s.sqlDB, propertyID)
}

func (t *storeTx) GetProperty(ctx context.Context, propertyID string) (storage.PropertyRecord, error) {
	return getProperty(ctx, t.q, propertyID)
}

// ListPropertyIDs returns the sorted ids of the owner's property documents.
func (s *Store) ListPropertyIDs(ctx context.Context, ownerID string) ([]string, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return listPropertyIDs(ctx, s.sqlDB, ownerID)
}

func (t *storeTx) ListPropertyIDs(ctx context.Context, ownerID string) ([]string, error) {
	return listPropertyIDs(ctx, t.q, ownerID)
}

func listPropertyIDs(ctx context.Context, q querier, ownerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	rows, err := q.QueryContext(
		ctx,
		`SELECT id FROM properties WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan property id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return ids, nil
}

// PutProperty inserts a new property document.
func (t *storeTx) PutProperty(ctx context.Context, property domain.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(property.ID) == "" {
		return fmt.Errorf("property id is required")
	}
	if strings.TrimSpace(property.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}

	doc, err := marshalPropertyDoc(property)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(
		ctx,
		`INSERT INTO properties (id, owner_id, doc, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, 1)`,
		property.ID,
		property.OwnerID,
		doc,
		toMillis(property.CreatedAt),
		toMillis(property.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put property: %w", err)
	}
	return nil
}

// UpdateProperty applies a version-checked write to a property document.
func (t *storeTx) UpdateProperty(ctx context.Context, record storage.PropertyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	property := record.Property
	if strings.TrimSpace(property.ID) == "" {
		return fmt.Errorf("property id is required")
	}

	doc, err := marshalPropertyDoc(property)
	if err != nil {
		return err
	}
	result, err := t.q.ExecContext(
		ctx,
		`UPDATE properties
		    SET doc = ?, updated_at = ?, version = version + 1
		  WHERE id = ? AND version = ?`,
		doc,
		toMillis(property.UpdatedAt),
		property.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

func getProperty(ctx context.Context, q querier, propertyID string) (storage.PropertyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PropertyRecord{}, err
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return storage.PropertyRecord{}, fmt.Errorf("property id is required")
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT id, owner_id, doc, created_at, updated_at, version
		   FROM properties WHERE id = ?`,
		propertyID,
	)

	var (
		property  domain.Property
		raw       string
		createdAt int64
		updatedAt int64
		version   int64
	)
	err := row.Scan(&property.ID, &property.OwnerID, &raw, &createdAt, &updatedAt, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PropertyRecord{}, storage.ErrNotFound
		}
		return storage.PropertyRecord{}, fmt.Errorf("scan property: %w", err)
	}

	var doc propertyDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return storage.PropertyRecord{}, fmt.Errorf("decode property doc: %w", err)
	}
	property.Units = doc.Units
	if property.Units == nil {
		property.Units = map[string]domain.Unit{}
	}
	property.Occupants = doc.Occupants
	property.CreatedAt = fromMillis(createdAt)
	property.UpdatedAt = fromMillis(updatedAt)
	return storage.PropertyRecord{Property: property, Version: version}, nil
}

func marshalPropertyDoc(property domain.Property) (string, error) {
	doc := propertyDoc{
		Units:     property.Units,
		Occupants: property.Occupants,
	}
	if doc.Units == nil {
		doc.Units = map[string]domain.Unit{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode property doc: %w", err)
	}
	return string(raw), nil
}
