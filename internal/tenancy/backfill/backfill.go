// Package backfill reconciles the denormalized relationship documents
// against acceptance history, the source of truth. It repairs partial writes
// left behind by older tooling or crashes: occupants missing from a unit,
// stale union entries, and occupant profiles without the reverse
// relationship.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

const defaultPageSize = 100

// Config controls a backfill sweep.
type Config struct {
	// PageSize bounds each owner-id page. Zero uses a default.
	PageSize int
	// DryRun reports drift without writing. The runner only needs the read
	// surface in this mode.
	DryRun bool
}

// Summary totals one sweep.
type Summary struct {
	OwnersScanned  int
	DriftsFound    int
	OwnersRepaired int
	OwnersFailed   int
}

// Runner pages through owners and reconciles each one's documents against
// its replayed acceptance history.
type Runner struct {
	store  storage.Store
	logger *log.Logger
	config Config
	clock  func() time.Time
}

// New creates a Runner.
func New(store storage.Store, logger *log.Logger, config Config) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	return &Runner{
		store:  store,
		logger: logger,
		config: config,
		clock:  time.Now,
	}
}

// Run sweeps every owner. A per-owner failure is logged and counted, not
// fatal; the sweep continues so one corrupted owner cannot block the rest.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.store == nil {
		return Summary{}, fmt.Errorf("store is not configured")
	}

	var summary Summary
	pageToken := ""
	for {
		page, err := r.store.ListOwnerIDs(ctx, r.config.PageSize, pageToken)
		if err != nil {
			return summary, fmt.Errorf("list owners: %w", err)
		}
		for _, ownerID := range page.OwnerIDs {
			summary.OwnersScanned++
			drifts, err := r.reconcileOwner(ctx, ownerID)
			summary.DriftsFound += drifts
			if err != nil {
				summary.OwnersFailed++
				r.logger.Printf("backfill owner=%s failed: %v", ownerID, err)
				continue
			}
			if drifts > 0 && !r.config.DryRun {
				summary.OwnersRepaired++
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	r.logger.Printf("backfill done owners=%d drifts=%d repaired=%d failed=%d dry_run=%t",
		summary.OwnersScanned, summary.DriftsFound, summary.OwnersRepaired, summary.OwnersFailed, r.config.DryRun)
	return summary, nil
}

// reconcileOwner replays the owner's history and reconciles each touched
// document, returning the number of drifts found.
func (r *Runner) reconcileOwner(ctx context.Context, ownerID string) (int, error) {
	history, err := r.store.ListAcceptanceHistory(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}
	placements := domain.CurrentPlacements(history)

	// Every property history ever touched gets visited, plus every document
	// the owner still holds. Properties whose replayed membership is empty,
	// or that no history record mentions at all, are exactly where a stale
	// document can linger.
	touched := make(map[string]bool)
	for _, record := range history {
		touched[record.PropertyID] = true
	}
	propertyIDs, err := r.store.ListPropertyIDs(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list properties: %w", err)
	}
	for _, propertyID := range propertyIDs {
		touched[propertyID] = true
	}

	drifts := 0
	unlink := make(map[string]map[string]bool)
	for _, propertyID := range sortedKeys(touched) {
		found, stale, err := r.reconcileProperty(ctx, ownerID, propertyID, placements[propertyID])
		drifts += found
		if err != nil {
			return drifts, err
		}
		for _, occupantID := range stale {
			markUnlink(unlink, propertyID, occupantID)
		}
	}
	for _, record := range history {
		if _, placed := placements[record.PropertyID][record.OccupantID]; !placed {
			markUnlink(unlink, record.PropertyID, record.OccupantID)
		}
	}

	found, err := r.reconcileOwnerProfile(ctx, ownerID, placements)
	drifts += found
	if err != nil {
		return drifts, err
	}

	for _, propertyID := range sortedKeys(placements) {
		for occupantID, unitID := range placements[propertyID] {
			found, err := r.reconcileOccupant(ctx, ownerID, propertyID, occupantID, unitID)
			drifts += found
			if err != nil {
				return drifts, err
			}
		}
	}
	for _, propertyID := range sortedKeys(unlink) {
		for _, occupantID := range sortedKeys(unlink[propertyID]) {
			found, err := r.reconcileOccupantUnlink(ctx, ownerID, propertyID, occupantID)
			drifts += found
			if err != nil {
				return drifts, err
			}
		}
	}
	return drifts, nil
}

func markUnlink(unlink map[string]map[string]bool, propertyID, occupantID string) {
	occupants := unlink[propertyID]
	if occupants == nil {
		occupants = make(map[string]bool)
		unlink[propertyID] = occupants
	}
	occupants[occupantID] = true
}

// reconcileProperty compares the property document against the expected
// placements and repairs it in live mode. It returns the stale occupants it
// found so the caller can unlink their profiles as well.
func (r *Runner) reconcileProperty(ctx context.Context, ownerID, propertyID string, expected map[string]string) (int, []string, error) {
	record, err := r.store.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// History references a property document that no longer
			// exists. Nothing to repair into; report it.
			r.logger.Printf("backfill owner=%s property=%s missing document", ownerID, propertyID)
			return 1, nil, nil
		}
		return 0, nil, fmt.Errorf("get property: %w", err)
	}

	missing, stale := diffProperty(record.Property, expected)
	if len(missing) == 0 && len(stale) == 0 {
		return 0, nil, nil
	}
	drifts := len(missing) + len(stale)
	r.logger.Printf("backfill owner=%s property=%s missing=%d stale=%d dry_run=%t",
		ownerID, propertyID, len(missing), len(stale), r.config.DryRun)
	if r.config.DryRun {
		return drifts, stale, nil
	}

	err = r.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		record, err := tx.GetProperty(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("get property: %w", err)
		}
		property := record.Property
		missing, stale := diffProperty(property, expected)
		for _, occupantID := range stale {
			property.RemoveOccupant(occupantID)
		}
		for _, occupantID := range missing {
			unitID := repairUnit(property, expected[occupantID])
			if unitID == "" {
				r.logger.Printf("backfill owner=%s property=%s occupant=%s no unit with capacity",
					ownerID, propertyID, occupantID)
				continue
			}
			if err := property.AddOccupant(unitID, occupantID); err != nil {
				return fmt.Errorf("add occupant: %w", err)
			}
		}
		if len(missing) == 0 && len(stale) == 0 {
			return nil
		}
		property.UpdatedAt = r.clock().UTC()
		record.Property = property
		return tx.UpdateProperty(ctx, record)
	})
	if err != nil {
		return drifts, stale, fmt.Errorf("repair property: %w", err)
	}
	return drifts, stale, nil
}

// reconcileOwnerProfile repairs the owner's accepted set against the
// replayed membership union.
func (r *Runner) reconcileOwnerProfile(ctx context.Context, ownerID string, placements map[string]map[string]string) (int, error) {
	expected := make(map[string]bool)
	for _, units := range placements {
		for occupantID := range units {
			expected[occupantID] = true
		}
	}

	record, err := r.store.GetOwnerProfile(ctx, ownerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("get owner profile: %w", err)
	}
	profileMissing := errors.Is(err, storage.ErrNotFound)

	drifts := 0
	if profileMissing {
		if len(expected) == 0 {
			return 0, nil
		}
		drifts = len(expected)
	} else {
		for occupantID := range expected {
			if !record.Profile.HasAccepted(occupantID) {
				drifts++
			}
		}
		for _, occupantID := range record.Profile.OccupantsAccepted {
			if !expected[occupantID] {
				drifts++
			}
		}
	}
	if drifts == 0 {
		return 0, nil
	}
	r.logger.Printf("backfill owner=%s profile drift=%d dry_run=%t", ownerID, drifts, r.config.DryRun)
	if r.config.DryRun {
		return drifts, nil
	}

	err = r.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := r.clock().UTC()
		record, err := tx.GetOwnerProfile(ctx, ownerID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("get owner profile: %w", err)
			}
			profile := domain.OwnerProfile{ID: ownerID, CreatedAt: now, UpdatedAt: now}
			for occupantID := range expected {
				profile.Accept(occupantID)
			}
			return tx.PutOwnerProfile(ctx, profile)
		}
		record.Profile.OccupantsAccepted = nil
		for occupantID := range expected {
			record.Profile.Accept(occupantID)
		}
		record.Profile.UpdatedAt = now
		return tx.UpdateOwnerProfile(ctx, record)
	})
	if err != nil {
		return drifts, fmt.Errorf("repair owner profile: %w", err)
	}
	return drifts, nil
}

// reconcileOccupant ensures the occupant profile carries the reverse
// relationship for an expected membership.
func (r *Runner) reconcileOccupant(ctx context.Context, ownerID, propertyID, occupantID, unitID string) (int, error) {
	record, err := r.store.GetOccupantProfile(ctx, occupantID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("get occupant profile: %w", err)
	}
	if err == nil && record.Profile.HasProperty(propertyID) {
		return 0, nil
	}

	r.logger.Printf("backfill owner=%s property=%s occupant=%s unlinked profile dry_run=%t",
		ownerID, propertyID, occupantID, r.config.DryRun)
	if r.config.DryRun {
		return 1, nil
	}

	rel := domain.Relationship{OwnerID: ownerID, PropertyID: propertyID, UnitID: unitID}
	err = r.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := r.clock().UTC()
		record, err := tx.GetOccupantProfile(ctx, occupantID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("get occupant profile: %w", err)
			}
			profile := domain.OccupantProfile{ID: occupantID, CreatedAt: now, UpdatedAt: now}
			profile.AddRelationship(rel)
			return tx.PutOccupantProfile(ctx, profile)
		}
		if record.Profile.HasProperty(propertyID) {
			return nil
		}
		record.Profile.AddRelationship(rel)
		record.Profile.UpdatedAt = now
		return tx.UpdateOccupantProfile(ctx, record)
	})
	if err != nil {
		return 1, fmt.Errorf("repair occupant profile: %w", err)
	}
	return 1, nil
}

// reconcileOccupantUnlink drops the reverse relationship from an occupant
// profile when replayed history no longer places the occupant in the property.
func (r *Runner) reconcileOccupantUnlink(ctx context.Context, ownerID, propertyID, occupantID string) (int, error) {
	record, err := r.store.GetOccupantProfile(ctx, occupantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get occupant profile: %w", err)
	}
	if !record.Profile.HasProperty(propertyID) {
		return 0, nil
	}

	r.logger.Printf("backfill owner=%s property=%s occupant=%s stale profile link dry_run=%t",
		ownerID, propertyID, occupantID, r.config.DryRun)
	if r.config.DryRun {
		return 1, nil
	}

	err = r.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		record, err := tx.GetOccupantProfile(ctx, occupantID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("get occupant profile: %w", err)
		}
		if !record.Profile.RemoveRelationship(propertyID) {
			return nil
		}
		record.Profile.UpdatedAt = r.clock().UTC()
		return tx.UpdateOccupantProfile(ctx, record)
	})
	if err != nil {
		return 1, fmt.Errorf("repair occupant profile: %w", err)
	}
	return 1, nil
}

// diffProperty compares property membership against expected placements.
// missing holds occupants history says belong but the document lacks; stale
// holds document members history does not account for.
func diffProperty(property domain.Property, expected map[string]string) (missing, stale []string) {
	for occupantID := range expected {
		if !property.HasOccupant(occupantID) {
			missing = append(missing, occupantID)
		}
	}
	sort.Strings(missing)
	for _, occupantID := range property.Occupants {
		if _, ok := expected[occupantID]; !ok {
			stale = append(stale, occupantID)
		}
	}
	return missing, stale
}

// repairUnit picks the unit to restore an occupant into: the recorded unit
// when it still exists and has room, otherwise the first unit with capacity.
func repairUnit(property domain.Property, recorded string) string {
	if recorded != "" {
		if err := domain.ValidateCapacity(property, recorded); err == nil {
			return recorded
		}
	}
	unitID, err := domain.FirstAvailable(property)
	if err != nil {
		return ""
	}
	return unitID
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
