// Package faults defines the error taxonomy shared across the Quorum core.
// Callers classify failures with errors.Is against these sentinels; packages
// wrap them with context via fmt.Errorf and %w.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a state-machine rule is violated,
	// e.g. submitting against a locked task.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientAnnotators is returned when consensus is attempted
	// before the required annotator count is met.
	ErrInsufficientAnnotators = errors.New("insufficient annotators")

	// ErrFlagBlocked is returned when an operation targets a flagged or
	// blocked task.
	ErrFlagBlocked = errors.New("task is flagged or blocked")

	// ErrStoreUnavailable is returned for transient store failures. Retry
	// with backoff happens at the adapter boundary, not in core logic.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedInput is returned for missing required fields or invalid
	// category/scenario combinations.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNotFound is returned when a referenced discussion, task, or flag
	// does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes one quality-rule failure against consensus data.
type ValidationError struct {
	DiscussionID string      `json:"discussion_id"`
	Task         int         `json:"task"`
	Field        string      `json:"field"`
	Message      string      `json:"message"`
	Value        interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("discussion %s task %d: %s: %s", e.DiscussionID, e.Task, e.Field, e.Message)
}

// ValidationFailed carries the full list of quality-rule failures so callers
// can display them rather than just a boolean verdict.
type ValidationFailed struct {
	Errors []ValidationError
}

func (v *ValidationFailed) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}
