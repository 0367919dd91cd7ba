package policy

import (
	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS CHANGE OPERATION
// Separate from the field decision table: the status itself changes only via
// this dedicated operation, and the marker effects depend on the status being
// applied, not on the status the snapshot had before.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyStatusChange stages a new student status on the pending update and
// raises or explicitly clears recalculation markers:
//
//   - ARC and MER clear the projected-graduation marker (tri-state "clear",
//     not merely unset);
//   - CUR raises the transcript marker and the projected marker;
//   - TER raises the transcript marker and clears the projected marker;
//   - DEC leaves both markers untouched.
func ApplyStatusChange(newStatus student.Status, update *student.PendingUpdate) error {
	if !newStatus.IsValid() {
		return student.ErrInvalidStatus
	}

	status := newStatus
	update.NewStatus = &status

	switch newStatus {
	case student.StatusArchived, student.StatusMerged:
		update.ClearProjectedRecalc()
	case student.StatusCurrent:
		update.RequireTranscriptRecalc()
		update.RequireProjectedRecalc()
	case student.StatusTerminated:
		update.RequireTranscriptRecalc()
		update.ClearProjectedRecalc()
	case student.StatusDeceased:
		// untouched
	}

	return nil
}
