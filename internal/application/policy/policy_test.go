package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

func snapshotWith(status student.Status, graduated bool) *student.Snapshot {
	snap := &student.Snapshot{
		ID:             "11111111-2222-3333-4444-555555555555",
		Pen:            "123456789",
		Program:        "2018-EN",
		SchoolOfRecord: "03636018",
		StudentGrade:   "12",
		Status:         status,
	}
	if graduated {
		completed := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
		snap.ProgramCompletionDate = &completed
	}
	return snap
}

func TestDecide_CurrentStatus(t *testing.T) {
	t.Run("school change raises both markers", func(t *testing.T) {
		out := Decide(FieldSchoolOfRecord, snapshotWith(student.StatusCurrent, false))

		assert.True(t, out.Applied)
		assert.True(t, out.TranscriptRecalc)
		assert.True(t, out.ProjectedRecalc)
	})

	t.Run("grade change for graduated student withholds transcript marker", func(t *testing.T) {
		out := Decide(FieldGrade, snapshotWith(student.StatusCurrent, true))

		assert.True(t, out.Applied)
		assert.False(t, out.TranscriptRecalc)
		assert.True(t, out.ProjectedRecalc)
	})

	t.Run("citizenship change for graduated student withholds transcript marker", func(t *testing.T) {
		out := Decide(FieldCitizenship, snapshotWith(student.StatusCurrent, true))

		assert.True(t, out.Applied)
		assert.False(t, out.TranscriptRecalc)
		assert.True(t, out.ProjectedRecalc)
	})

	t.Run("school change for graduated student still raises transcript marker", func(t *testing.T) {
		out := Decide(FieldSchoolOfRecord, snapshotWith(student.StatusCurrent, true))

		assert.True(t, out.Applied)
		assert.True(t, out.TranscriptRecalc)
	})

	t.Run("program change blocked for graduated non-SCCP student", func(t *testing.T) {
		out := Decide(FieldProgram, snapshotWith(student.StatusCurrent, true))

		assert.False(t, out.Applied)
		assert.False(t, out.TranscriptRecalc)
		assert.False(t, out.ProjectedRecalc)
	})

	t.Run("program change allowed for graduated SCCP student", func(t *testing.T) {
		snap := snapshotWith(student.StatusCurrent, true)
		snap.Program = "SCCP"

		out := Decide(FieldProgram, snap)

		assert.True(t, out.Applied)
		assert.True(t, out.TranscriptRecalc)
		assert.True(t, out.ProjectedRecalc)
	})
}

func TestDecide_ArchivedStatus(t *testing.T) {
	t.Run("graduated student: nothing applies, no markers", func(t *testing.T) {
		snap := snapshotWith(student.StatusArchived, true)

		for _, field := range Fields() {
			out := Decide(field, snap)
			assert.False(t, out.Applied, "field %s", field)
			assert.False(t, out.TranscriptRecalc, "field %s", field)
			assert.False(t, out.ProjectedRecalc, "field %s", field)
		}
	})

	t.Run("non-graduated student: applies with transcript marker only", func(t *testing.T) {
		snap := snapshotWith(student.StatusArchived, false)

		out := Decide(FieldGrade, snap)
		assert.True(t, out.Applied)
		assert.True(t, out.TranscriptRecalc)
		assert.False(t, out.ProjectedRecalc)
	})
}

func TestDecide_TerminatedStatus(t *testing.T) {
	// TER applies unconditionally, even for graduated students.
	snap := snapshotWith(student.StatusTerminated, true)

	for _, field := range Fields() {
		out := Decide(field, snap)
		assert.True(t, out.Applied, "field %s", field)
		assert.True(t, out.TranscriptRecalc, "field %s", field)
		assert.False(t, out.ProjectedRecalc, "field %s", field)
	}
}

func TestDecide_MergedAndDeceased(t *testing.T) {
	for _, status := range []student.Status{student.StatusMerged, student.StatusDeceased} {
		snap := snapshotWith(status, false)

		for _, field := range Fields() {
			out := Decide(field, snap)
			assert.True(t, out.Applied, "status %s field %s", status, field)
			assert.False(t, out.TranscriptRecalc, "status %s field %s", status, field)
			assert.False(t, out.ProjectedRecalc, "status %s field %s", status, field)
		}
	}
}

func TestOutcomeMark(t *testing.T) {
	update := student.NewPendingUpdate()

	Outcome{Applied: true, TranscriptRecalc: true}.Mark(update)
	assert.Equal(t, student.RecalcRequired, update.RecalcTranscript)
	assert.Equal(t, student.RecalcUnset, update.RecalcProjected)

	Outcome{Applied: true, ProjectedRecalc: true}.Mark(update)
	assert.Equal(t, student.RecalcRequired, update.RecalcProjected)
	assert.True(t, update.AnyRecalc())
}

func TestDeriveTransitionFlags(t *testing.T) {
	tests := []struct {
		name           string
		oldProgram     string
		newProgram     string
		frenchEvidence bool
		want           student.TransitionFlags
	}{
		{
			name:       "EN to PF adds dual dogwood",
			oldProgram: "2018-EN",
			newProgram: "2018-PF",
			want:       student.TransitionFlags{AddDualDogwood: true},
		},
		{
			name:       "PF to EN deletes dual dogwood and adds french immersion",
			oldProgram: "2018-PF",
			newProgram: "2018-EN",
			want:       student.TransitionFlags{DeleteDualDogwood: true, AddFrenchImmersion: true},
		},
		{
			name:           "EN to EN with french course evidence adds french immersion",
			oldProgram:     "2004-EN",
			newProgram:     "2018-EN",
			frenchEvidence: true,
			want:           student.TransitionFlags{AddFrenchImmersion: true},
		},
		{
			name:       "EN to EN without evidence keeps everything",
			oldProgram: "2004-EN",
			newProgram: "2018-EN",
			want:       student.TransitionFlags{},
		},
		{
			name:       "PF to PF keeps dual dogwood flagged",
			oldProgram: "2004-PF",
			newProgram: "2018-PF",
			want:       student.TransitionFlags{AddDualDogwood: true},
		},
		{
			name:       "PF to plain 1950 deletes dual dogwood only",
			oldProgram: "2018-PF",
			newProgram: "1950",
			want:       student.TransitionFlags{DeleteDualDogwood: true},
		},
		{
			name:           "evidence alone does not add FI to a non-EN program",
			oldProgram:     "2018-EN",
			newProgram:     "SCCP",
			frenchEvidence: true,
			want:           student.TransitionFlags{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTransitionFlags(tt.oldProgram, tt.newProgram, tt.frenchEvidence)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveAdultStartDate(t *testing.T) {
	t.Run("derives birthdate plus 18 years", func(t *testing.T) {
		snap := snapshotWith(student.StatusCurrent, false)
		snap.Birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

		got := DeriveAdultStartDate("1950", snap)

		require.NotNil(t, got)
		assert.Equal(t, time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC), *got)
	})

	t.Run("no derivation when already recorded", func(t *testing.T) {
		snap := snapshotWith(student.StatusCurrent, false)
		snap.Birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
		existing := time.Date(2010, 9, 1, 0, 0, 0, 0, time.UTC)
		snap.AdultStartDate = &existing

		assert.Nil(t, DeriveAdultStartDate("1950", snap))
	})

	t.Run("no derivation for non-adult programs", func(t *testing.T) {
		snap := snapshotWith(student.StatusCurrent, false)
		snap.Birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

		assert.Nil(t, DeriveAdultStartDate("2018-EN", snap))
	})
}

func TestApplyStatusChange(t *testing.T) {
	tests := []struct {
		name           string
		status         student.Status
		wantTranscript student.RecalcMark
		wantProjected  student.RecalcMark
	}{
		{"ARC clears projected", student.StatusArchived, student.RecalcUnset, student.RecalcCleared},
		{"MER clears projected", student.StatusMerged, student.RecalcUnset, student.RecalcCleared},
		{"CUR raises both", student.StatusCurrent, student.RecalcRequired, student.RecalcRequired},
		{"TER raises transcript, clears projected", student.StatusTerminated, student.RecalcRequired, student.RecalcCleared},
		{"DEC touches nothing", student.StatusDeceased, student.RecalcUnset, student.RecalcUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := student.NewPendingUpdate()

			err := ApplyStatusChange(tt.status, update)

			require.NoError(t, err)
			require.NotNil(t, update.NewStatus)
			assert.Equal(t, tt.status, *update.NewStatus)
			assert.Equal(t, tt.wantTranscript, update.RecalcTranscript)
			assert.Equal(t, tt.wantProjected, update.RecalcProjected)
		})
	}

	t.Run("unknown status rejected", func(t *testing.T) {
		update := student.NewPendingUpdate()
		err := ApplyStatusChange(student.Status("XXX"), update)
		assert.ErrorIs(t, err, student.ErrInvalidStatus)
	})
}
