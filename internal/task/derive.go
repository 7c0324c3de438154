package task

// Facts holds the raw inputs from which a task's correct status is derived.
// AnnotatorCount and consensus existence come straight from the store; the
// validation outcomes come from the validation engine. PrevTaskReady is the
// unlock precondition supplied by the caller (always true for task 1).
type Facts struct {
	TaskID             int
	AnnotatorCount     int
	RequiredAnnotators int
	HasConsensus       bool
	QualityErrorCount  int
	NextTrackGate      bool
	PrevTaskReady      bool
	SkipToTask3        bool
}

// DeriveStatus recomputes the correct status strictly from raw facts,
// independent of whatever status is currently stored. Flags are not part of
// the derivation: callers skip flagged tasks entirely.
func DeriveStatus(f Facts) Status {
	unlocked := f.PrevTaskReady || f.TaskID == 1 || (f.TaskID == 3 && f.SkipToTask3)
	if !unlocked {
		return StatusLocked
	}
	if !f.HasConsensus {
		if f.AnnotatorCount >= f.RequiredAnnotators {
			return StatusReadyForConsensus
		}
		return StatusUnlocked
	}
	if f.QualityErrorCount > 0 {
		return StatusRework
	}
	if f.NextTrackGate {
		return StatusReadyForNext
	}
	return StatusCompleted
}

// PrevReady reports whether a task's predecessor status satisfies the unlock
// precondition for the next task. Task 2 requires task 1 to be ready_for_next
// (its next-track gate held); task 3 opens once task 2 is completed or
// ready_for_next.
func PrevReady(prevTaskID int, prevStatus Status) bool {
	switch prevTaskID {
	case 1:
		return prevStatus == StatusReadyForNext
	case 2:
		return prevStatus == StatusCompleted || prevStatus == StatusReadyForNext
	default:
		return false
	}
}
