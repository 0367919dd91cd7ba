package policy

import (
	"time"

	"github.com/grad-hub/grad-record-hub/internal/domain/program"
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM TRANSITION FLAGS
// Derived once per event from the old/new program-code suffix comparison.
// Dual Dogwood and French Immersion membership never comes from the explicit
// XPROGRAM diff: DD follows the suffix transition alone, FI additionally
// follows the French-course-evidence predicate.
// ══════════════════════════════════════════════════════════════════════════════

// DeriveTransitionFlags computes the optional-program transition flags for an
// applied program change. frenchEvidence is the course-evidence predicate
// evaluated for the new program; it covers a school legitimately retaining
// French Immersion after moving from a PF program to an EN program.
func DeriveTransitionFlags(oldProgram, newProgram string, frenchEvidence bool) student.TransitionFlags {
	flags := student.TransitionFlags{}

	oldPF := program.IsProgrammeFrancophone(oldProgram)
	newPF := program.IsProgrammeFrancophone(newProgram)

	if newPF {
		flags.AddDualDogwood = true
	}
	if oldPF && !newPF {
		flags.DeleteDualDogwood = true
	}
	if program.IsEnglishProgram(newProgram) && (oldPF || frenchEvidence) {
		flags.AddFrenchImmersion = true
	}

	return flags
}

// ══════════════════════════════════════════════════════════════════════════════
// ADULT START DATE
// ══════════════════════════════════════════════════════════════════════════════

// DeriveAdultStartDate returns the adult-start-date to stage when the resolved
// new program is the adult 1950 program and none is recorded yet: date of
// birth plus 18 years. Returns nil when no derivation applies.
func DeriveAdultStartDate(newProgram string, snapshot *student.Snapshot) *time.Time {
	if newProgram != program.ProgramAdult1950 {
		return nil
	}
	if snapshot.AdultStartDate != nil {
		return nil
	}
	if snapshot.Birthdate.IsZero() {
		return nil
	}

	start := snapshot.AdultStartFromBirthdate()
	return &start
}
