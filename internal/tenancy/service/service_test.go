package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/event"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// fakeState is the in-memory document set behind fakeStore.
type fakeState struct {
	invites   map[string]storage.InviteRecord
	props     map[string]storage.PropertyRecord
	owners    map[string]storage.OwnerProfileRecord
	occupants map[string]storage.OccupantProfileRecord
	history   []domain.AcceptanceRecord
	nextSeq   int64
}

func newFakeState() *fakeState {
	return &fakeState{
		invites:   make(map[string]storage.InviteRecord),
		props:     make(map[string]storage.PropertyRecord),
		owners:    make(map[string]storage.OwnerProfileRecord),
		occupants: make(map[string]storage.OccupantProfileRecord),
		nextSeq:   1,
	}
}

func (s *fakeState) clone() *fakeState {
	next := newFakeState()
	for k, v := range s.invites {
		next.invites[k] = v
	}
	for k, v := range s.props {
		v.Property = cloneProperty(v.Property)
		next.props[k] = v
	}
	for k, v := range s.owners {
		v.Profile.OccupantsAccepted = slices.Clone(v.Profile.OccupantsAccepted)
		next.owners[k] = v
	}
	for k, v := range s.occupants {
		v.Profile.Relationships = slices.Clone(v.Profile.Relationships)
		next.occupants[k] = v
	}
	next.history = slices.Clone(s.history)
	next.nextSeq = s.nextSeq
	return next
}

func cloneProperty(p domain.Property) domain.Property {
	units := make(map[string]domain.Unit, len(p.Units))
	for id, unit := range p.Units {
		unit.Occupants = slices.Clone(unit.Occupants)
		units[id] = unit
	}
	p.Units = units
	p.Occupants = slices.Clone(p.Occupants)
	return p
}

// fakeStore is an in-memory storage.Store with transactional rollback and
// optional conflict injection for retry tests.
type fakeStore struct {
	state *fakeState
	// updateConflicts makes the next N versioned updates fail with
	// ErrConflict before applying.
	updateConflicts int
	// txErr aborts InTx before running the function.
	txErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newFakeState()}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if f.txErr != nil {
		return f.txErr
	}
	scratch := f.state.clone()
	tx := &fakeTx{store: f, state: scratch}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	f.state = scratch
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetInvite(_ context.Context, inviteID string) (storage.InviteRecord, error) {
	return f.state.getInvite(inviteID)
}

func (f *fakeStore) GetInviteByCode(_ context.Context, code string) (storage.InviteRecord, error) {
	return f.state.getInviteByCode(code)
}

func (f *fakeStore) GetProperty(_ context.Context, propertyID string) (storage.PropertyRecord, error) {
	return f.state.getProperty(propertyID)
}

func (f *fakeStore) ListPropertyIDs(_ context.Context, ownerID string) ([]string, error) {
	return f.state.listPropertyIDs(ownerID), nil
}

func (f *fakeStore) GetOwnerProfile(_ context.Context, ownerID string) (storage.OwnerProfileRecord, error) {
	return f.state.getOwnerProfile(ownerID)
}

func (f *fakeStore) GetOccupantProfile(_ context.Context, occupantID string) (storage.OccupantProfileRecord, error) {
	return f.state.getOccupantProfile(occupantID)
}

func (f *fakeStore) ListAcceptanceHistory(_ context.Context, ownerID string) ([]domain.AcceptanceRecord, error) {
	return f.state.listHistory(ownerID), nil
}

func (f *fakeStore) ListOwnerIDs(_ context.Context, pageSize int, pageToken string) (storage.OwnerPage, error) {
	var ids []string
	for id := range f.state.owners {
		if id > pageToken {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	page := storage.OwnerPage{OwnerIDs: ids}
	if pageSize > 0 && len(ids) > pageSize {
		page.OwnerIDs = ids[:pageSize]
		page.NextPageToken = ids[pageSize-1]
	}
	return page, nil
}

type fakeTx struct {
	store *fakeStore
	state *fakeState
}

func (t *fakeTx) GetInvite(_ context.Context, inviteID string) (storage.InviteRecord, error) {
	return t.state.getInvite(inviteID)
}

func (t *fakeTx) GetInviteByCode(_ context.Context, code string) (storage.InviteRecord, error) {
	return t.state.getInviteByCode(code)
}

func (t *fakeTx) GetProperty(_ context.Context, propertyID string) (storage.PropertyRecord, error) {
	return t.state.getProperty(propertyID)
}

func (t *fakeTx) ListPropertyIDs(_ context.Context, ownerID string) ([]string, error) {
	return t.state.listPropertyIDs(ownerID), nil
}

func (t *fakeTx) GetOwnerProfile(_ context.Context, ownerID string) (storage.OwnerProfileRecord, error) {
	return t.state.getOwnerProfile(ownerID)
}

func (t *fakeTx) GetOccupantProfile(_ context.Context, occupantID string) (storage.OccupantProfileRecord, error) {
	return t.state.getOccupantProfile(occupantID)
}

func (t *fakeTx) ListAcceptanceHistory(_ context.Context, ownerID string) ([]domain.AcceptanceRecord, error) {
	return t.state.listHistory(ownerID), nil
}

func (t *fakeTx) ListOwnerIDs(ctx context.Context, pageSize int, pageToken string) (storage.OwnerPage, error) {
	return t.store.ListOwnerIDs(ctx, pageSize, pageToken)
}

func (t *fakeTx) PutInvite(_ context.Context, invite domain.Invite) error {
	if _, ok := t.state.invites[invite.ID]; ok {
		return storage.ErrAlreadyExists
	}
	for _, record := range t.state.invites {
		if record.Invite.Code == invite.Code && record.Invite.Status == domain.StatusPending {
			return storage.ErrAlreadyExists
		}
	}
	t.state.invites[invite.ID] = storage.InviteRecord{Invite: invite, Version: 1}
	return nil
}

func (t *fakeTx) UpdateInvite(_ context.Context, record storage.InviteRecord) error {
	current, ok := t.state.invites[record.Invite.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := t.conflictOrMatch(current.Version, record.Version); err != nil {
		return err
	}
	record.Version++
	t.state.invites[record.Invite.ID] = record
	return nil
}

func (t *fakeTx) PutProperty(_ context.Context, property domain.Property) error {
	if _, ok := t.state.props[property.ID]; ok {
		return storage.ErrAlreadyExists
	}
	t.state.props[property.ID] = storage.PropertyRecord{Property: cloneProperty(property), Version: 1}
	return nil
}

func (t *fakeTx) UpdateProperty(_ context.Context, record storage.PropertyRecord) error {
	current, ok := t.state.props[record.Property.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := t.conflictOrMatch(current.Version, record.Version); err != nil {
		return err
	}
	record.Property = cloneProperty(record.Property)
	record.Version++
	t.state.props[record.Property.ID] = record
	return nil
}

func (t *fakeTx) PutOwnerProfile(_ context.Context, profile domain.OwnerProfile) error {
	if _, ok := t.state.owners[profile.ID]; ok {
		return storage.ErrAlreadyExists
	}
	t.state.owners[profile.ID] = storage.OwnerProfileRecord{Profile: profile, Version: 1}
	return nil
}

func (t *fakeTx) UpdateOwnerProfile(_ context.Context, record storage.OwnerProfileRecord) error {
	current, ok := t.state.owners[record.Profile.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := t.conflictOrMatch(current.Version, record.Version); err != nil {
		return err
	}
	record.Version++
	t.state.owners[record.Profile.ID] = record
	return nil
}

func (t *fakeTx) PutOccupantProfile(_ context.Context, profile domain.OccupantProfile) error {
	if _, ok := t.state.occupants[profile.ID]; ok {
		return storage.ErrAlreadyExists
	}
	t.state.occupants[profile.ID] = storage.OccupantProfileRecord{Profile: profile, Version: 1}
	return nil
}

func (t *fakeTx) UpdateOccupantProfile(_ context.Context, record storage.OccupantProfileRecord) error {
	current, ok := t.state.occupants[record.Profile.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := t.conflictOrMatch(current.Version, record.Version); err != nil {
		return err
	}
	record.Version++
	t.state.occupants[record.Profile.ID] = record
	return nil
}

func (t *fakeTx) AppendHistory(_ context.Context, record domain.AcceptanceRecord) error {
	record.Seq = t.state.nextSeq
	t.state.nextSeq++
	t.state.history = append(t.state.history, record)
	return nil
}

func (t *fakeTx) conflictOrMatch(current, read int64) error {
	if t.store.updateConflicts > 0 {
		t.store.updateConflicts--
		return storage.ErrConflict
	}
	if current != read {
		return storage.ErrConflict
	}
	return nil
}

func (s *fakeState) getInvite(inviteID string) (storage.InviteRecord, error) {
	record, ok := s.invites[inviteID]
	if !ok {
		return storage.InviteRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *fakeState) getInviteByCode(code string) (storage.InviteRecord, error) {
	var fallback storage.InviteRecord
	found := false
	for _, record := range s.invites {
		if record.Invite.Code != code {
			continue
		}
		if record.Invite.Status == domain.StatusPending {
			return record, nil
		}
		fallback = record
		found = true
	}
	if !found {
		return storage.InviteRecord{}, storage.ErrNotFound
	}
	return fallback, nil
}

func (s *fakeState) getProperty(propertyID string) (storage.PropertyRecord, error) {
	record, ok := s.props[propertyID]
	if !ok {
		return storage.PropertyRecord{}, storage.ErrNotFound
	}
	record.Property = cloneProperty(record.Property)
	return record, nil
}

func (s *fakeState) listPropertyIDs(ownerID string) []string {
	var ids []string
	for id, record := range s.props {
		if record.Property.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *fakeState) getOwnerProfile(ownerID string) (storage.OwnerProfileRecord, error) {
	record, ok := s.owners[ownerID]
	if !ok {
		return storage.OwnerProfileRecord{}, storage.ErrNotFound
	}
	record.Profile.OccupantsAccepted = slices.Clone(record.Profile.OccupantsAccepted)
	return record, nil
}

func (s *fakeState) getOccupantProfile(occupantID string) (storage.OccupantProfileRecord, error) {
	record, ok := s.occupants[occupantID]
	if !ok {
		return storage.OccupantProfileRecord{}, storage.ErrNotFound
	}
	record.Profile.Relationships = slices.Clone(record.Profile.Relationships)
	return record, nil
}

func (s *fakeState) listHistory(ownerID string) []domain.AcceptanceRecord {
	var records []domain.AcceptanceRecord
	for _, record := range s.history {
		if record.OwnerID == ownerID {
			records = append(records, record)
		}
	}
	return records
}

// seedProperty inserts a property document directly.
func (f *fakeStore) seedProperty(p domain.Property) {
	f.state.props[p.ID] = storage.PropertyRecord{Property: cloneProperty(p), Version: 1}
}

// seedInvite inserts an invite directly.
func (f *fakeStore) seedInvite(invite domain.Invite) {
	f.state.invites[invite.ID] = storage.InviteRecord{Invite: invite, Version: 1}
}

// recorder collects dispatched events.
type recorder struct {
	events []event.Event
}

func (r *recorder) Dispatch(_ context.Context, evt event.Event) {
	r.events = append(r.events, evt)
}

// seqIDs returns an id generator yielding id-1, id-2, ...
func seqIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
}

// seqCodes returns a code generator yielding deterministic codes of the
// requested length.
func seqCodes() func(length int) (string, error) {
	n := 0
	return func(length int) (string, error) {
		n++
		code := fmt.Sprintf("CODE%04d", n)
		for len(code) < length {
			code += "X"
		}
		return code[:length], nil
	}
}

func newTestService(store *fakeStore, rec *recorder, opts ...Option) *Service {
	base := []Option{
		WithClock(fixedClock),
		WithIDGenerator(seqIDs()),
		WithCodeGenerator(seqCodes()),
	}
	if rec != nil {
		base = append(base, WithDispatcher(rec))
	}
	return New(store, append(base, opts...)...)
}

func twoUnitProperty() domain.Property {
	return domain.Property{
		ID:      "property-1",
		OwnerID: "owner-1",
		Units: map[string]domain.Unit{
			"unit-a": {Capacity: 1},
			"unit-b": {Capacity: 2},
		},
	}
}

var _ storage.Store = (*fakeStore)(nil)
var _ storage.Tx = (*fakeTx)(nil)
