package validate

import (
	"fmt"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
	"gorm.io/gorm"
)

// Discussion runs every quality rule against every existing consensus of one
// discussion and returns the accumulated errors.
func Discussion(db *gorm.DB, discussionID string) ([]faults.ValidationError, error) {
	disc, err := task.GetDiscussion(db, discussionID)
	if err != nil {
		return nil, err
	}
	return discussionErrors(db, disc)
}

func discussionErrors(db *gorm.DB, disc *models.Discussion) ([]faults.ValidationError, error) {
	var consensuses []models.Consensus
	if err := db.Where("discussion_id = ?", disc.ID).Order("task_id ASC").Find(&consensuses).Error; err != nil {
		return nil, fmt.Errorf("validate: load consensuses %s: %w", disc.ID, err)
	}
	var errs []faults.ValidationError
	for i := range consensuses {
		data, derr := consensuses[i].DataMap()
		if derr != nil {
			return nil, derr
		}
		errs = append(errs, CheckConsensus(disc, consensuses[i].TaskID, data)...)
	}
	return errs, nil
}

// taskErrors filters validation errors down to one task.
func taskErrors(errs []faults.ValidationError, taskID int) []faults.ValidationError {
	var out []faults.ValidationError
	for _, e := range errs {
		if e.Task == taskID {
			out = append(out, e)
		}
	}
	return out
}

// ExportReady reports whether a discussion is eligible for downstream export.
// Task 1 must be complete with no task-1 errors. When the task-1 progression
// gate fails, the discussion exports under the task1-only track and task 3 is
// not required; when the gate holds, task 3 must also be complete with no
// task-3 errors.
func ExportReady(db *gorm.DB, discussionID string) (bool, error) {
	disc, err := task.GetDiscussion(db, discussionID)
	if err != nil {
		return false, err
	}
	return exportReady(db, disc)
}

func exportReady(db *gorm.DB, disc *models.Discussion) (bool, error) {
	slots := make(map[int]models.TaskSlot, len(disc.Tasks))
	for _, s := range disc.Tasks {
		slots[s.TaskID] = s
	}

	if !taskComplete(task.Status(slots[1].Status)) {
		return false, nil
	}

	var cons1 models.Consensus
	if err := db.Where("discussion_id = ? AND task_id = ?", disc.ID, 1).First(&cons1).Error; err != nil {
		return false, nil // no consensus record, not exportable regardless of status
	}
	data1, err := cons1.DataMap()
	if err != nil {
		return false, err
	}

	allErrs, err := discussionErrors(db, disc)
	if err != nil {
		return false, err
	}
	if len(taskErrors(allErrs, 1)) > 0 {
		return false, nil
	}

	if !CanProceedToNextTrack(data1) {
		return true, nil // task1-only track
	}

	if !taskComplete(task.Status(slots[3].Status)) {
		return false, nil
	}
	return len(taskErrors(allErrs, 3)) == 0, nil
}

func taskComplete(s task.Status) bool {
	return s == task.StatusCompleted || s == task.StatusReadyForNext
}

// Buckets partitions discussions by export state.
type Buckets struct {
	Valid      []string `json:"valid"`
	WithErrors []string `json:"with_errors"`
	NotReady   []string `json:"not_ready"`
}

// ExportBuckets classifies every non-archived discussion as valid (export
// ready), with-errors (quality rules produced errors), or not-ready
// (mid-pipeline, no errors yet).
func ExportBuckets(db *gorm.DB) (*Buckets, error) {
	var discs []models.Discussion
	if err := db.Preload("Tasks").Where("archived = ?", false).Order("id ASC").Find(&discs).Error; err != nil {
		return nil, fmt.Errorf("validate: list discussions: %w", err)
	}

	buckets := &Buckets{}
	for i := range discs {
		disc := &discs[i]
		ready, err := exportReady(db, disc)
		if err != nil {
			return nil, err
		}
		if ready {
			buckets.Valid = append(buckets.Valid, disc.ID)
			continue
		}
		errs, err := discussionErrors(db, disc)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			buckets.WithErrors = append(buckets.WithErrors, disc.ID)
		} else {
			buckets.NotReady = append(buckets.NotReady, disc.ID)
		}
	}
	return buckets, nil
}
