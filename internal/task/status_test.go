package task

import "testing"

func TestParseStatus(t *testing.T) {
	for _, st := range AllStatuses {
		got, err := ParseStatus(string(st))
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %q", st, got)
		}
	}
	if _, err := ParseStatus("in_review"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Error("expected error for empty status")
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusLocked, StatusUnlocked, true},
		{StatusUnlocked, StatusReadyForConsensus, true},
		{StatusReadyForConsensus, StatusConsensusCreated, true},
		{StatusConsensusCreated, StatusCompleted, true},
		{StatusConsensusCreated, StatusRework, true},
		{StatusCompleted, StatusReadyForNext, true},
		{StatusCompleted, StatusRework, true},
		{StatusReadyForNext, StatusRework, true},
		{StatusRework, StatusReadyForConsensus, true},
		{StatusRework, StatusConsensusCreated, true},

		// any non-locked status can be blocked or flagged
		{StatusUnlocked, StatusFlagged, true},
		{StatusReadyForConsensus, StatusBlocked, true},
		{StatusCompleted, StatusFlagged, true},
		{StatusReadyForNext, StatusBlocked, true},
		{StatusLocked, StatusFlagged, false},
		{StatusLocked, StatusBlocked, false},

		// flag resolution returns to a derived status
		{StatusFlagged, StatusUnlocked, true},
		{StatusFlagged, StatusLocked, true},
		{StatusBlocked, StatusReadyForConsensus, true},

		{StatusLocked, StatusReadyForConsensus, false},
		{StatusUnlocked, StatusCompleted, false},
		{StatusReadyForConsensus, StatusCompleted, false},
		{StatusCompleted, StatusUnlocked, false},
		{StatusReadyForNext, StatusCompleted, false},

		// self-transitions are never valid
		{StatusUnlocked, StatusUnlocked, false},
		{StatusFlagged, StatusFlagged, false},
	}
	for _, tt := range tests {
		if got := IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRequiredAnnotators(t *testing.T) {
	tests := []struct {
		taskID int
		want   int
	}{
		{1, 3},
		{2, 3},
		{3, 5},
	}
	for _, tt := range tests {
		if got := RequiredAnnotators(tt.taskID); got != tt.want {
			t.Errorf("RequiredAnnotators(%d) = %d, want %d", tt.taskID, got, tt.want)
		}
	}
}
