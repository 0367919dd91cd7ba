package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grad-hub/grad-record-hub/internal/application/reconcile"
	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/shared"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeRepo struct {
	byPEN   map[student.PEN]*student.Snapshot
	applied []*student.PendingUpdate
	flags   []student.TransitionFlags
}

func newFakeRepo(snaps ...*student.Snapshot) *fakeRepo {
	r := &fakeRepo{byPEN: make(map[student.PEN]*student.Snapshot)}
	for _, s := range snaps {
		r.byPEN[s.Pen] = s
	}
	return r
}

func (r *fakeRepo) GetByPEN(_ context.Context, pen student.PEN) (*student.Snapshot, error) {
	snap, ok := r.byPEN[pen]
	if !ok {
		return nil, student.ErrSnapshotNotFound
	}
	return snap, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*student.Snapshot, error) {
	for _, snap := range r.byPEN {
		if snap.ID == id {
			return snap, nil
		}
	}
	return nil, student.ErrSnapshotNotFound
}

func (r *fakeRepo) Create(_ context.Context, snapshot *student.Snapshot) error {
	if _, ok := r.byPEN[snapshot.Pen]; ok {
		return student.ErrSnapshotAlreadyExists
	}
	r.byPEN[snapshot.Pen] = snapshot
	return nil
}

func (r *fakeRepo) ApplyUpdate(_ context.Context, pen student.PEN, update *student.PendingUpdate, flags student.TransitionFlags) error {
	snap, ok := r.byPEN[pen]
	if !ok {
		return student.ErrSnapshotNotFound
	}
	update.ApplyTo(snap)
	r.applied = append(r.applied, update)
	r.flags = append(r.flags, flags)
	return nil
}

type fakeRegistry struct {
	entries map[string]*program.RegistryEntry
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
	entry, ok := r.entries[mainProgram+"/"+code]
	if !ok {
		return nil, shared.ErrRegistryEntryNotFound
	}
	return entry, nil
}

type fakeProgramStore struct {
	optional map[string][]student.OptionalProgramRow
	career   map[string][]string
}

func newFakeProgramStore() *fakeProgramStore {
	return &fakeProgramStore{
		optional: make(map[string][]student.OptionalProgramRow),
		career:   make(map[string][]string),
	}
}

func (s *fakeProgramStore) ListOptional(_ context.Context, studentID string) ([]student.OptionalProgramRow, error) {
	return s.optional[studentID], nil
}

func (s *fakeProgramStore) AddOptional(_ context.Context, studentID, registryID, code string) error {
	for _, row := range s.optional[studentID] {
		if row.RegistryID == registryID {
			return nil
		}
	}
	s.optional[studentID] = append(s.optional[studentID], student.OptionalProgramRow{
		RegistryID: registryID,
		Code:       code,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (s *fakeProgramStore) RemoveOptional(_ context.Context, studentID, registryID string) error {
	rows := s.optional[studentID]
	for i, row := range rows {
		if row.RegistryID == registryID {
			s.optional[studentID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeProgramStore) ListCareer(_ context.Context, studentID string) ([]string, error) {
	return s.career[studentID], nil
}

func (s *fakeProgramStore) AddCareer(_ context.Context, studentID, code string) error {
	for _, c := range s.career[studentID] {
		if c == code {
			return nil
		}
	}
	s.career[studentID] = append(s.career[studentID], code)
	return nil
}

func (s *fakeProgramStore) RemoveCareer(_ context.Context, studentID, code string) error {
	codes := s.career[studentID]
	for i, c := range codes {
		if c == code {
			s.career[studentID] = append(codes[:i], codes[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeConvErrors struct {
	recorded []student.ConversionError
}

func (f *fakeConvErrors) Record(_ context.Context, pen student.PEN, reason string) error {
	f.recorded = append(f.recorded, student.ConversionError{Pen: pen, Reason: reason, CreatedAt: time.Now()})
	return nil
}

func (f *fakeConvErrors) ListByPEN(_ context.Context, pen student.PEN) ([]student.ConversionError, error) {
	var out []student.ConversionError
	for _, e := range f.recorded {
		if e.Pen == pen {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeEvidence struct {
	has     bool
	err     error
	signals []student.CourseSignal
}

func (f *fakeEvidence) HasFrenchImmersionEvidence(_ context.Context, _ string, _ student.PEN, signal student.CourseSignal) (bool, error) {
	f.signals = append(f.signals, signal)
	return f.has, f.err
}

type fakeDemographics struct {
	record *student.Demographics
	err    error
	calls  int
}

func (f *fakeDemographics) GetStudentDemographics(_ context.Context, pen student.PEN) (*student.Demographics, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil {
		return f.record, nil
	}
	return &student.Demographics{Pen: pen}, nil
}

type recomputeCall struct {
	studentID  string
	transcript bool
	projected  bool
}

type fakeRecompute struct {
	calls []recomputeCall
}

func (f *fakeRecompute) RequestBatchRecompute(_ context.Context, studentID string, transcript, projected bool) error {
	f.calls = append(f.calls, recomputeCall{studentID, transcript, projected})
	return nil
}

type fakeEventStore struct {
	records   map[string]*shared.EventRecord
	processed []string
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{records: make(map[string]*shared.EventRecord)}
}

func (s *fakeEventStore) Save(_ context.Context, record *shared.EventRecord) error {
	s.records[record.ID] = record
	return nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id string) (*shared.EventRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, shared.ErrEventNotFound
	}
	return record, nil
}

func (s *fakeEventStore) MarkProcessed(_ context.Context, id string) error {
	s.processed = append(s.processed, id)
	if record, ok := s.records[id]; ok {
		record.Status = shared.EventStatusProcessed
	}
	return nil
}

func (s *fakeEventStore) ListPending(_ context.Context, _ int) ([]*shared.EventRecord, error) {
	return nil, nil
}

func (s *fakeEventStore) PurgeProcessed(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type fixture struct {
	service      *Service
	repo         *fakeRepo
	registry     *fakeRegistry
	programs     *fakeProgramStore
	convErrors   *fakeConvErrors
	evidence     *fakeEvidence
	demographics *fakeDemographics
	recompute    *fakeRecompute
	events       *fakeEventStore
}

func newFixture(t *testing.T, snaps ...*student.Snapshot) *fixture {
	t.Helper()

	f := &fixture{
		repo:         newFakeRepo(snaps...),
		registry:     newFakeRegistry(),
		programs:     newFakeProgramStore(),
		convErrors:   &fakeConvErrors{},
		evidence:     &fakeEvidence{},
		demographics: &fakeDemographics{},
		recompute:    &fakeRecompute{},
		events:       newFakeEventStore(),
	}

	reconciler := reconcile.NewReconciler(f.registry, f.programs, nil)
	f.service = NewService(
		f.repo, nil, f.programs, f.registry, reconciler,
		f.convErrors, f.evidence, f.demographics, f.recompute, f.events, nil, DefaultConfig(),
	)
	return f
}

func currentSnapshot(t *testing.T, pen, programCode string) *student.Snapshot {
	t.Helper()

	snap, err := student.NewSnapshot(student.NewSnapshotParams{
		ID:             "stu-" + pen,
		Pen:            student.PEN(pen),
		Program:        programCode,
		SchoolOfRecord: "0933021",
		StudentGrade:   "12",
		Status:         student.StatusCurrent,
		Citizenship:    "C",
	})
	require.NoError(t, err)
	return snap
}

func baseEvent(eventType shared.EventType, pen string) shared.BaseEvent {
	return shared.BaseEvent{
		ID:        "evt-" + pen + "-" + string(eventType),
		Type:      eventType,
		Pen:       pen,
		Timestamp: time.Now().UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NEWSTUDENT
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleNewStudent_CreatesRecordAndRequestsRecompute(t *testing.T) {
	f := newFixture(t)

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		StudentStatus:   "CUR",
		Citizenship:     "C",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	snap, err := f.repo.GetByPEN(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "2018-PF", snap.Program)
	assert.Equal(t, student.StatusCurrent, snap.Status)
	assert.NotEmpty(t, snap.ID)

	require.Len(t, f.recompute.calls, 1)
	assert.True(t, f.recompute.calls[0].transcript)
	assert.True(t, f.recompute.calls[0].projected)

	assert.Contains(t, f.events.processed, ev.EventID())
	assert.Empty(t, f.convErrors.recorded)
}

func TestHandleNewStudent_SeedsDemographicsFromTrax(t *testing.T) {
	f := newFixture(t)
	f.demographics.record = &student.Demographics{
		Pen:       "123456789",
		FirstName: "John",
		LastName:  "Smith",
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		StudentStatus:   "CUR",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	snap, err := f.repo.GetByPEN(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, 1, f.demographics.calls)
	assert.Equal(t, "John", snap.FirstName)
	assert.Equal(t, "Smith", snap.LastName)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), snap.Birthdate)
}

func TestHandleNewStudent_DemographicsFetchFailureStillConverts(t *testing.T) {
	f := newFixture(t)
	f.demographics.err = shared.ErrTraxUnavailable

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		StudentStatus:   "CUR",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	// Отказ TRAX не блокирует конвертацию: запись создаётся без демографии,
	// её позже довезёт UPD_DEMOG.
	snap, err := f.repo.GetByPEN(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Empty(t, snap.FirstName)
	assert.True(t, snap.Birthdate.IsZero())
	assert.Contains(t, f.events.processed, ev.EventID())
}

func TestHandleNewStudent_AdultProgramDerivesStartDate(t *testing.T) {
	f := newFixture(t)
	f.demographics.record = &student.Demographics{
		Pen:       "123456789",
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "1950",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "AD",
		StudentStatus:   "CUR",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	snap, err := f.repo.GetByPEN(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "1950", snap.Program)
	require.NotNil(t, snap.AdultStartDate)
	assert.Equal(t, time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC), *snap.AdultStartDate)
}

func TestHandleNewStudent_DuplicateDeliveryIsIdempotent(t *testing.T) {
	existing := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, existing)

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		StudentStatus:   "CUR",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	snap, _ := f.repo.GetByPEN(context.Background(), "123456789")
	assert.Equal(t, "2018-EN", snap.Program, "existing record must not be overwritten")
	assert.Empty(t, f.recompute.calls)
	assert.Contains(t, f.events.processed, ev.EventID())
}

func TestHandleNewStudent_UnmappedYearRecordsConversionError(t *testing.T) {
	f := newFixture(t)

	ev := &shared.NewStudentEvent{
		BaseEvent:       baseEvent(shared.EventNewStudent, "123456789"),
		RequirementYear: "1987",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		StudentStatus:   "CUR",
	}

	require.NoError(t, f.service.HandleNewStudent(context.Background(), ev))

	// Запись создаётся без программы, ошибка фиксируется, событие обработано.
	snap, err := f.repo.GetByPEN(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Empty(t, snap.Program)
	require.NotEmpty(t, f.convErrors.recorded)
	assert.Contains(t, f.events.processed, ev.EventID())
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT (grad master update)
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleGradMasterUpdate_ProgramChangeWithTransitionFlags(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-PF")
	f := newFixture(t, snap)

	// Франкофонная школа сменилась на обычную: 2018-PF -> 2018-EN.
	ev := &shared.GradMasterUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradMasterUpdate, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "1234567",
		StudentGrade:    "12",
	}

	require.NoError(t, f.service.HandleGradMasterUpdate(context.Background(), ev))

	assert.Equal(t, "2018-EN", snap.Program)
	require.Len(t, f.repo.flags, 1)
	assert.True(t, f.repo.flags[0].DeleteDualDogwood)
	assert.True(t, f.repo.flags[0].AddFrenchImmersion)
	assert.False(t, f.repo.flags[0].AddDualDogwood)

	require.Len(t, f.recompute.calls, 1)
	assert.Contains(t, f.events.processed, ev.EventID())
}

func TestHandleGradMasterUpdate_GraduatedBlocksProgramChange(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	completed := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	snap.ProgramCompletionDate = &completed
	f := newFixture(t, snap)

	ev := &shared.GradMasterUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradMasterUpdate, "123456789"),
		RequirementYear: "2004",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		FrenchCert:      "F",
	}

	require.NoError(t, f.service.HandleGradMasterUpdate(context.Background(), ev))

	assert.Equal(t, "2018-EN", snap.Program, "graduated non-SCCP program must stay put")
	assert.Contains(t, f.events.processed, ev.EventID())
}

func TestHandleGradMasterUpdate_UnknownStudentRecordsError(t *testing.T) {
	f := newFixture(t)

	ev := &shared.GradMasterUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradMasterUpdate, "999999999"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
	}

	require.NoError(t, f.service.HandleGradMasterUpdate(context.Background(), ev))

	require.NotEmpty(t, f.convErrors.recorded)
	assert.Contains(t, f.events.processed, ev.EventID(), "event must advance even without a student")
}

// ══════════════════════════════════════════════════════════════════════════════
// UPD_GRAD
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleGradUpdate_SLPDateApplied(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-PF")
	f := newFixture(t, snap)

	ev := &shared.GradUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradUpdate, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		SLPDate:         "20230630",
	}

	require.NoError(t, f.service.HandleGradUpdate(context.Background(), ev))

	require.NotNil(t, snap.ProgramCompletionDate)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), *snap.ProgramCompletionDate)
	require.Len(t, f.recompute.calls, 1)
	assert.True(t, f.recompute.calls[0].transcript)
}

func TestHandleGradUpdate_MalformedSLPDateSkipsFieldOnly(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-PF")
	f := newFixture(t, snap)

	ev := &shared.GradUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradUpdate, "123456789"),
		RequirementYear: "2018",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "12",
		Citizenship:     "A",
		SLPDate:         "June 30, 2023",
	}

	require.NoError(t, f.service.HandleGradUpdate(context.Background(), ev))

	assert.Nil(t, snap.ProgramCompletionDate)
	assert.Equal(t, "A", snap.Citizenship, "other fields still apply")
	require.NotEmpty(t, f.convErrors.recorded)
	assert.Contains(t, f.events.processed, ev.EventID())
}

func TestHandleGradUpdate_AdultProgramDerivesStartDate(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.Birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, snap)

	ev := &shared.GradUpdateEvent{
		BaseEvent:       baseEvent(shared.EventGradUpdate, "123456789"),
		RequirementYear: "1950",
		SchoolOfRecord:  "0933021",
		StudentGrade:    "AD",
	}

	require.NoError(t, f.service.HandleGradUpdate(context.Background(), ev))

	assert.Equal(t, "1950", snap.Program)
	require.NotNil(t, snap.AdultStartDate)
	assert.Equal(t, time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC), *snap.AdultStartDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPD_DEMOG
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleDemographics_DifferenceAppliedRegardlessOfStatus(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.Status = student.StatusArchived
	completed := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	snap.ProgramCompletionDate = &completed
	snap.FirstName = "Jon"
	f := newFixture(t, snap)

	ev := &shared.DemographicsEvent{
		BaseEvent: baseEvent(shared.EventDemographics, "123456789"),
		FirstName: "John",
		LastName:  "Smith",
		Birthdate: "1990-01-01",
	}

	require.NoError(t, f.service.HandleDemographics(context.Background(), ev))

	// Статусные правила не применяются: архивный выпускник всё равно обновлён.
	assert.Equal(t, "John", snap.FirstName)
	assert.Equal(t, "Smith", snap.LastName)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), snap.Birthdate)
	require.Len(t, f.recompute.calls, 1)
	assert.True(t, f.recompute.calls[0].transcript)
	assert.True(t, f.recompute.calls[0].projected)
}

func TestHandleDemographics_NoDifferenceNoRecompute(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.FirstName = "John"
	snap.LastName = "Smith"
	snap.Birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, snap)

	ev := &shared.DemographicsEvent{
		BaseEvent: baseEvent(shared.EventDemographics, "123456789"),
		FirstName: "John",
		LastName:  "Smith",
		Birthdate: "1990-01-01",
	}

	require.NoError(t, f.service.HandleDemographics(context.Background(), ev))

	assert.Empty(t, f.recompute.calls)
	assert.Empty(t, f.repo.applied)
	assert.Contains(t, f.events.processed, ev.EventID())
}

// ══════════════════════════════════════════════════════════════════════════════
// UPD_STD_STATUS
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleStatusChange_ToCurrentRequiresBothRecalcs(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.Status = student.StatusArchived
	f := newFixture(t, snap)

	ev := &shared.StatusChangeEvent{
		BaseEvent: baseEvent(shared.EventStatusChange, "123456789"),
		NewStatus: "CUR",
	}

	require.NoError(t, f.service.HandleStatusChange(context.Background(), ev))

	assert.Equal(t, student.StatusCurrent, snap.Status)
	require.Len(t, f.recompute.calls, 1)
	assert.True(t, f.recompute.calls[0].transcript)
	assert.True(t, f.recompute.calls[0].projected)
}

func TestHandleStatusChange_ToArchivedClearsProjectedOnly(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, snap)

	ev := &shared.StatusChangeEvent{
		BaseEvent: baseEvent(shared.EventStatusChange, "123456789"),
		NewStatus: "ARC",
	}

	require.NoError(t, f.service.HandleStatusChange(context.Background(), ev))

	assert.Equal(t, student.StatusArchived, snap.Status)
	require.Len(t, f.repo.applied, 1)
	assert.Equal(t, student.RecalcCleared, f.repo.applied[0].RecalcProjected)
	assert.Empty(t, f.recompute.calls, "explicit clear is not a recompute request")
}

func TestHandleStatusChange_UnknownCodeRecordsError(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, snap)

	ev := &shared.StatusChangeEvent{
		BaseEvent: baseEvent(shared.EventStatusChange, "123456789"),
		NewStatus: "XXX",
	}

	require.NoError(t, f.service.HandleStatusChange(context.Background(), ev))

	assert.Equal(t, student.StatusCurrent, snap.Status)
	require.NotEmpty(t, f.convErrors.recorded)
	assert.Contains(t, f.events.processed, ev.EventID())
}

// ══════════════════════════════════════════════════════════════════════════════
// XPROGRAM
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleProgramList_ReconcilesOptionalAndCareer(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.OptionalProgramCodes = []string{"XC", "FI"}
	f := newFixture(t, snap)

	f.registry.add("2018-EN", "XC", "reg-xc")
	f.registry.add("2018-EN", "FI", "reg-fi")
	f.registry.add("2018-EN", "AD", "reg-ad")
	f.registry.add("2018-EN", "CP", "reg-cp")
	f.programs.optional[snap.ID] = []student.OptionalProgramRow{
		{RegistryID: "reg-xc", Code: "XC"},
		{RegistryID: "reg-fi", Code: "FI"},
	}

	ev := &shared.ProgramListEvent{
		BaseEvent:   baseEvent(shared.EventProgramList, "123456789"),
		ProgramList: []string{"AD", "XQ"},
	}

	require.NoError(t, f.service.HandleProgramList(context.Background(), ev))

	codes := make([]string, 0)
	for _, row := range f.programs.optional[snap.ID] {
		codes = append(codes, row.Code)
	}
	assert.Contains(t, codes, "AD", "registry code joins optional programs")
	assert.Contains(t, codes, "FI", "protected FI survives removal")
	assert.NotContains(t, codes, "XC")
	assert.Contains(t, f.programs.career[snap.ID], "XQ", "non-registry code is a career program")
	assert.Contains(t, f.events.processed, ev.EventID())
}

// ══════════════════════════════════════════════════════════════════════════════
// FI events
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleFrenchImmersion_EvidenceAppearsAddsFI(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, snap)
	f.registry.add("2018-EN", "FI", "reg-fi")
	f.evidence.has = true

	ev := &shared.FrenchImmersionEvent{
		BaseEvent:  baseEvent(shared.EventFrenchImmersion10Add, "123456789"),
		CourseCode: "FRAL",
	}

	require.NoError(t, f.service.HandleFrenchImmersion(context.Background(), ev))

	require.Len(t, f.programs.optional[snap.ID], 1)
	assert.Equal(t, "FI", f.programs.optional[snap.ID][0].Code)
	require.Len(t, f.recompute.calls, 1)
}

func TestHandleFrenchImmersion_EvidenceGoneRemovesFI(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.OptionalProgramCodes = []string{"FI"}
	f := newFixture(t, snap)
	f.programs.optional[snap.ID] = []student.OptionalProgramRow{{RegistryID: "reg-fi", Code: "FI"}}
	f.evidence.has = false

	ev := &shared.FrenchImmersionEvent{
		BaseEvent:  baseEvent(shared.EventFrenchImmersion11Delete, "123456789"),
		CourseCode: "FRAL",
	}

	require.NoError(t, f.service.HandleFrenchImmersion(context.Background(), ev))

	assert.Empty(t, f.programs.optional[snap.ID])
	require.Len(t, f.recompute.calls, 1)
}

func TestHandleFrenchImmersion_ForwardsCourseSignal(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, snap)
	f.registry.add("2018-EN", "FI", "reg-fi")
	f.evidence.has = true

	ev := &shared.FrenchImmersionEvent{
		BaseEvent:   baseEvent(shared.EventFrenchImmersion11Add, "123456789"),
		CourseCode:  "FRAL",
		CourseLevel: "11",
	}

	require.NoError(t, f.service.HandleFrenchImmersion(context.Background(), ev))

	// Код и уровень курса из события доезжают до предиката свидетельств.
	require.Len(t, f.evidence.signals, 1)
	assert.Equal(t, student.CourseSignal{CourseCode: "FRAL", CourseLevel: "11"}, f.evidence.signals[0])
}

func TestHandleFrenchImmersion_NoChangeNoRecompute(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	snap.OptionalProgramCodes = []string{"FI"}
	f := newFixture(t, snap)
	f.programs.optional[snap.ID] = []student.OptionalProgramRow{{RegistryID: "reg-fi", Code: "FI"}}
	f.evidence.has = true

	ev := &shared.FrenchImmersionEvent{
		BaseEvent:  baseEvent(shared.EventFrenchImmersion10Add, "123456789"),
		CourseCode: "FRAL",
	}

	require.NoError(t, f.service.HandleFrenchImmersion(context.Background(), ev))

	assert.Empty(t, f.recompute.calls)
	assert.Contains(t, f.events.processed, ev.EventID())
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE / ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleCourseChange_AlwaysRequestsRecompute(t *testing.T) {
	snap := currentSnapshot(t, "123456789", "2018-EN")
	f := newFixture(t, snap)

	ev := &shared.CourseChangeEvent{
		BaseEvent:  baseEvent(shared.EventCourseChange, "123456789"),
		CourseCode: "CALC12",
	}

	require.NoError(t, f.service.HandleCourseChange(context.Background(), ev))

	require.Len(t, f.recompute.calls, 1)
	assert.Equal(t, snap.ID, f.recompute.calls[0].studentID)
	assert.True(t, f.recompute.calls[0].transcript)
	assert.True(t, f.recompute.calls[0].projected)
	assert.Empty(t, f.repo.applied, "no field updates for course changes")
	assert.Contains(t, f.events.processed, ev.EventID())
}
