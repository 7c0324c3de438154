// Package task implements the per-discussion-per-task status state machine.
package task

import "fmt"

// Status is the closed set of task workflow states.
type Status string

const (
	StatusLocked            Status = "locked"
	StatusUnlocked          Status = "unlocked"
	StatusReadyForConsensus Status = "ready_for_consensus"
	StatusConsensusCreated  Status = "consensus_created"
	StatusCompleted         Status = "completed"
	StatusRework            Status = "rework"
	StatusBlocked           Status = "blocked"
	StatusReadyForNext      Status = "ready_for_next"
	StatusFlagged           Status = "flagged"
)

// AllStatuses lists every valid status.
var AllStatuses = []Status{
	StatusLocked,
	StatusUnlocked,
	StatusReadyForConsensus,
	StatusConsensusCreated,
	StatusCompleted,
	StatusRework,
	StatusBlocked,
	StatusReadyForNext,
	StatusFlagged,
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("task: unknown status %q", s)
}

// ValidTransitions maps each status to its valid next statuses. The special
// cases "any non-locked → blocked/flagged" and flag resolution (blocked or
// flagged back to a derived status) are handled in IsValidTransition.
var ValidTransitions = map[Status][]Status{
	StatusLocked:            {StatusUnlocked},
	StatusUnlocked:          {StatusReadyForConsensus},
	StatusReadyForConsensus: {StatusConsensusCreated},
	StatusConsensusCreated:  {StatusCompleted, StatusRework},
	StatusCompleted:         {StatusReadyForNext, StatusRework},
	StatusReadyForNext:      {StatusRework},
	StatusRework:            {StatusUnlocked, StatusReadyForConsensus, StatusConsensusCreated},
	StatusBlocked:           {StatusUnlocked, StatusReadyForConsensus, StatusConsensusCreated, StatusCompleted, StatusReadyForNext, StatusRework, StatusLocked},
	StatusFlagged:           {StatusUnlocked, StatusReadyForConsensus, StatusConsensusCreated, StatusCompleted, StatusReadyForNext, StatusRework, StatusLocked},
}

// IsValidTransition checks whether a status transition is allowed. A locked
// task may only be flagged through an upstream flag, which the flagging
// subsystem applies directly, so locked → flagged/blocked is rejected here.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusBlocked || to == StatusFlagged {
		return from != StatusLocked
	}
	valid, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == to {
			return true
		}
	}
	return false
}
