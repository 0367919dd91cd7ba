package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeRegistry struct {
	entries map[string]*program.RegistryEntry // keyed on mainProgram + "/" + code
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: make(map[string]*program.RegistryEntry)}
}

func (r *fakeRegistry) add(mainProgram, code, id string) {
	r.entries[mainProgram+"/"+code] = &program.RegistryEntry{
		ID:                  id,
		MainProgramCode:     mainProgram,
		OptionalProgramCode: code,
	}
}

func (r *fakeRegistry) Lookup(_ context.Context, mainProgram, code string) (*program.RegistryEntry, error) {
	if entry, ok := r.entries[mainProgram+"/"+code]; ok {
		return entry, nil
	}
	return nil, shared.ErrRegistryEntryNotFound
}

type fakeProgramStore struct {
	optionals map[string][]student.OptionalProgramRow // studentID -> rows
	careers   map[string][]string
}

func newFakeProgramStore() *fakeProgramStore {
	return &fakeProgramStore{
		optionals: make(map[string][]student.OptionalProgramRow),
		careers:   make(map[string][]string),
	}
}

func (s *fakeProgramStore) ListOptional(_ context.Context, studentID string) ([]student.OptionalProgramRow, error) {
	return s.optionals[studentID], nil
}

func (s *fakeProgramStore) AddOptional(_ context.Context, studentID, registryID, code string) error {
	for _, row := range s.optionals[studentID] {
		if row.RegistryID == registryID {
			return nil
		}
	}
	s.optionals[studentID] = append(s.optionals[studentID], student.OptionalProgramRow{
		RegistryID: registryID,
		Code:       code,
	})
	return nil
}

func (s *fakeProgramStore) RemoveOptional(_ context.Context, studentID, registryID string) error {
	rows := s.optionals[studentID]
	for i, row := range rows {
		if row.RegistryID == registryID {
			s.optionals[studentID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeProgramStore) ListCareer(_ context.Context, studentID string) ([]string, error) {
	return s.careers[studentID], nil
}

func (s *fakeProgramStore) AddCareer(_ context.Context, studentID, code string) error {
	for _, c := range s.careers[studentID] {
		if c == code {
			return nil
		}
	}
	s.careers[studentID] = append(s.careers[studentID], code)
	return nil
}

func (s *fakeProgramStore) RemoveCareer(_ context.Context, studentID, code string) error {
	codes := s.careers[studentID]
	for i, c := range codes {
		if c == code {
			s.careers[studentID] = append(codes[:i], codes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeProgramStore) optionalCodes(studentID string) []string {
	codes := make([]string, 0)
	for _, row := range s.optionals[studentID] {
		codes = append(codes, row.Code)
	}
	return codes
}

func testSnapshot() *student.Snapshot {
	return &student.Snapshot{
		ID:      "student-1",
		Pen:     "123456789",
		Program: "2018-EN",
		Status:  student.StatusCurrent,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Diff tests
// ─────────────────────────────────────────────────────────────────────────────

func TestComputeDiff_Idempotence(t *testing.T) {
	sets := [][]string{
		nil,
		{},
		{"AD"},
		{"XC", "ID", "FI"},
		{"DD", "FI", "CP", "AD"},
	}

	for _, set := range sets {
		diff := ComputeDiff(set, set)
		assert.Empty(t, diff.Added)
		assert.Empty(t, diff.Removed)
		assert.True(t, diff.IsEmpty())
	}
}

func TestComputeDiff_ProtectedCodesNeverRemoved(t *testing.T) {
	current := []string{"FI", "AD"}
	requested := []string{"AD"} // FI dropped from the requested set

	diff := ComputeDiff(requested, current)

	assert.Empty(t, diff.Added)
	assert.NotContains(t, diff.Removed, "FI")
	assert.Empty(t, diff.Removed)
}

func TestComputeDiff_ProtectedCodesNeverAdded(t *testing.T) {
	// DD/FI приходят только через свои правила, CP - через агрегат. Явный
	// список XPROGRAM не может их навязать.
	diff := ComputeDiff([]string{"DD", "FI", "CP", "AD"}, nil)

	assert.Equal(t, []string{"AD"}, diff.Added)
	assert.Empty(t, diff.Removed)
}

func TestComputeDiff_MixedAddRemoveWithProtected(t *testing.T) {
	// requested={XC,AD}, current={XC,ID,FI} ⇒ added={AD}, removed={ID}
	diff := ComputeDiff([]string{"XC", "AD"}, []string{"XC", "ID", "FI"})

	assert.Equal(t, []string{"AD"}, diff.Added)
	assert.Equal(t, []string{"ID"}, diff.Removed)
}

func TestComputeDiff_AllProtected(t *testing.T) {
	diff := ComputeDiff(nil, []string{"DD", "FI", "CP"})

	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
}

func TestComputeDiff_IgnoresEmptyCodes(t *testing.T) {
	diff := ComputeDiff([]string{"", "AD"}, []string{""})

	assert.Equal(t, []string{"AD"}, diff.Added)
	assert.Empty(t, diff.Removed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reconciler tests
// ─────────────────────────────────────────────────────────────────────────────

func TestReconcile_ClassifiesOptionalVsCareer(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "AD", "reg-ad")
	registry.add("2018-EN", "CP", "reg-cp")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()

	// AD has a registry entry -> optional; XC does not -> career.
	diff, err := rec.Reconcile(context.Background(), snap, []string{"AD", "XC"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"AD", "XC"}, diff.Added)
	assert.Contains(t, store.optionalCodes("student-1"), "AD")
	assert.Contains(t, store.careers["student-1"], "XC")
}

func TestReconcile_CareerAggregateInvariant(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "CP", "reg-cp")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()
	ctx := context.Background()

	// Adding a career program must surface the CP aggregate.
	_, err := rec.Reconcile(ctx, snap, []string{"XC"})
	require.NoError(t, err)
	assert.Contains(t, store.optionalCodes("student-1"), "CP")

	// Removing the last career program must retract the CP aggregate.
	snap.CareerProgramCodes = []string{"XC"}
	snap.OptionalProgramCodes = []string{"CP"}
	_, err = rec.Reconcile(ctx, snap, nil)
	require.NoError(t, err)
	assert.NotContains(t, store.optionalCodes("student-1"), "CP")
	assert.Empty(t, store.careers["student-1"])
}

func TestReconcile_CareerAggregateIdempotent(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "CP", "reg-cp")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()
	ctx := context.Background()

	require.NoError(t, store.AddCareer(ctx, snap.ID, "XC"))
	require.NoError(t, store.AddOptional(ctx, snap.ID, "reg-cp", "CP"))

	// CP already present and a career program remains: recompute is a no-op.
	require.NoError(t, rec.SyncCareerAggregate(ctx, snap))
	assert.Equal(t, []string{"CP"}, store.optionalCodes("student-1"))

	require.NoError(t, rec.SyncCareerAggregate(ctx, snap))
	assert.Equal(t, []string{"CP"}, store.optionalCodes("student-1"))
}

func TestReconcile_RemovedCodesExcludeProtected(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "ID", "reg-id")
	registry.add("2018-EN", "CP", "reg-cp")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()
	snap.OptionalProgramCodes = []string{"XC", "ID", "FI"}
	require.NoError(t, store.AddOptional(context.Background(), snap.ID, "reg-id", "ID"))
	require.NoError(t, store.AddOptional(context.Background(), snap.ID, "reg-fi", "FI"))
	require.NoError(t, store.AddCareer(context.Background(), snap.ID, "XC"))

	diff, err := rec.Reconcile(context.Background(), snap, []string{"XC", "AD"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AD"}, diff.Added)
	assert.Equal(t, []string{"ID"}, diff.Removed)
	// FI survives even though it is absent from the requested list.
	assert.Contains(t, store.optionalCodes("student-1"), "FI")
}

func TestReconcile_ProtectedCodesNotAttachedFromRequestedList(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "DD", "reg-dd")
	registry.add("2018-EN", "AD", "reg-ad")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()

	diff, err := rec.Reconcile(context.Background(), snap, []string{"DD", "AD"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AD"}, diff.Added)
	assert.NotContains(t, store.optionalCodes("student-1"), "DD")
	assert.Contains(t, store.optionalCodes("student-1"), "AD")
}

func TestSyncFrenchImmersion(t *testing.T) {
	registry := newFakeRegistry()
	registry.add("2018-EN", "FI", "reg-fi")
	store := newFakeProgramStore()
	rec := NewReconciler(registry, store, nil)

	snap := testSnapshot()
	ctx := context.Background()

	// false -> true adds FI.
	require.NoError(t, rec.SyncFrenchImmersion(ctx, snap, false, true))
	assert.Contains(t, store.optionalCodes("student-1"), "FI")

	// steady state is a no-op.
	require.NoError(t, rec.SyncFrenchImmersion(ctx, snap, true, true))
	assert.Len(t, store.optionals["student-1"], 1)

	// true -> false removes FI.
	require.NoError(t, rec.SyncFrenchImmersion(ctx, snap, true, false))
	assert.NotContains(t, store.optionalCodes("student-1"), "FI")

	// removing when absent is a no-op.
	require.NoError(t, rec.SyncFrenchImmersion(ctx, snap, true, false))
}
