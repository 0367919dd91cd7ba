// Package policy implements the status-gated field update policy of the
// reconciliation engine. For every candidate field and every student status it
// decides whether a proposed change is applied and which recalculation markers
// are raised. The policy is table-driven so that each decision can be checked
// per table row.
package policy

import (
	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field identifies a candidate field of the student snapshot.
type Field int

const (
	// FieldSchoolOfRecord - the school-of-record code.
	FieldSchoolOfRecord Field = iota
	// FieldGrade - the student grade.
	FieldGrade
	// FieldCitizenship - the citizenship code.
	FieldCitizenship
	// FieldProgram - the derived program code.
	FieldProgram
	// FieldSLPDate - the staged leaving/program completion date.
	FieldSLPDate
)

// String returns the field name for logging.
func (f Field) String() string {
	switch f {
	case FieldSchoolOfRecord:
		return "school_of_record"
	case FieldGrade:
		return "student_grade"
	case FieldCitizenship:
		return "citizenship"
	case FieldProgram:
		return "program"
	case FieldSLPDate:
		return "slp_date"
	default:
		return "unknown"
	}
}

// Fields returns the closed enumeration of policy-gated fields.
func Fields() []Field {
	return []Field{FieldSchoolOfRecord, FieldGrade, FieldCitizenship, FieldProgram, FieldSLPDate}
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISION TABLE
// ══════════════════════════════════════════════════════════════════════════════

// guardKind is the precondition applied before a field change goes through.
type guardKind int

const (
	// guardNone - the change is always applied.
	guardNone guardKind = iota
	// guardNotGraduated - the change is applied only if the student has not
	// graduated yet.
	guardNotGraduated
	// guardProgramChange - the change is applied unless the student has
	// graduated on a non-SCCP program.
	guardProgramChange
)

// transcriptRule decides whether the transcript recalculation marker is raised
// for an applied change.
type transcriptRule int

const (
	// trAlways - raise the transcript marker.
	trAlways transcriptRule = iota
	// trUnlessGraduated - raise the marker unless the student has graduated.
	trUnlessGraduated
	// trNever - never raise the marker.
	trNever
)

// decision is one row of the policy table.
type decision struct {
	guard      guardKind
	transcript transcriptRule
	projected  bool
}

// decisionTable maps (status, field) to a decision. Statuses absent from the
// table fall back to the MER/DEC row: apply the value but never raise a marker.
var decisionTable = map[student.Status]map[Field]decision{
	student.StatusCurrent: {
		FieldSchoolOfRecord: {guard: guardNone, transcript: trAlways, projected: true},
		FieldGrade:          {guard: guardNone, transcript: trUnlessGraduated, projected: true},
		FieldCitizenship:    {guard: guardNone, transcript: trUnlessGraduated, projected: true},
		FieldSLPDate:        {guard: guardNone, transcript: trAlways, projected: true},
		FieldProgram:        {guard: guardProgramChange, transcript: trAlways, projected: true},
	},
	student.StatusArchived: {
		FieldSchoolOfRecord: {guard: guardNotGraduated, transcript: trAlways},
		FieldGrade:          {guard: guardNotGraduated, transcript: trAlways},
		FieldCitizenship:    {guard: guardNotGraduated, transcript: trAlways},
		FieldSLPDate:        {guard: guardNotGraduated, transcript: trAlways},
		FieldProgram:        {guard: guardProgramChange, transcript: trAlways},
	},
	student.StatusTerminated: {
		FieldSchoolOfRecord: {guard: guardNone, transcript: trAlways},
		FieldGrade:          {guard: guardNone, transcript: trAlways},
		FieldCitizenship:    {guard: guardNone, transcript: trAlways},
		FieldSLPDate:        {guard: guardNone, transcript: trAlways},
		FieldProgram:        {guard: guardNone, transcript: trAlways},
	},
}

// defaultDecision is the MER/DEC row: the value is applied without suppression
// but no recalculation marker is ever raised.
var defaultDecision = decision{guard: guardNone, transcript: trNever}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Outcome is the result of a single field decision.
type Outcome struct {
	// Applied - the proposed value should be written into the pending update.
	Applied bool

	// TranscriptRecalc - the transcript recalculation marker must be raised.
	TranscriptRecalc bool

	// ProjectedRecalc - the projected-graduation marker must be raised.
	ProjectedRecalc bool
}

// Mark transfers the raised markers onto the pending update.
func (o Outcome) Mark(update *student.PendingUpdate) {
	if o.TranscriptRecalc {
		update.RequireTranscriptRecalc()
	}
	if o.ProjectedRecalc {
		update.RequireProjectedRecalc()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Decide evaluates the policy table for one field against the current
// snapshot. The snapshot is read-only here; callers write the new value into
// the pending update only when Outcome.Applied is true.
func Decide(field Field, snapshot *student.Snapshot) Outcome {
	row, ok := decisionTable[snapshot.Status]
	d := defaultDecision
	if ok {
		if fieldDecision, found := row[field]; found {
			d = fieldDecision
		}
	}

	graduated := snapshot.IsGraduated()

	switch d.guard {
	case guardNotGraduated:
		if graduated {
			return Outcome{}
		}
	case guardProgramChange:
		if graduated && snapshot.Program != program.ProgramSCCP {
			return Outcome{}
		}
	}

	out := Outcome{Applied: true}

	switch d.transcript {
	case trAlways:
		out.TranscriptRecalc = true
	case trUnlessGraduated:
		out.TranscriptRecalc = !graduated
	}

	out.ProjectedRecalc = d.projected

	return out
}
