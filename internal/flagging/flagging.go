// Package flagging records out-of-band problem reports that redirect or hold
// the task workflow until a human resolves them.
package flagging

import (
	"errors"
	"fmt"
	"time"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/statusfix"
	"github.com/quorumhq/quorum/internal/task"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinReasonLength is the canonical minimum flag reason length. The legacy
// 10-character policy is not honored.
const MinReasonLength = 15

// Flag categories.
const (
	CategoryWorkflowMisrouting = "workflow_misrouting"
	CategoryQualityIssue       = "quality_issue"
	CategoryConsensusMismatch  = "consensus_mismatch"
	CategoryDataError          = "data_error"
	CategoryGeneral            = "general"
)

// Caller roles recognized for category gating.
const (
	RoleAnnotator = "annotator"
	RolePodLead   = "pod_lead"
	RoleAdmin     = "admin"
)

// Workflow scenarios for workflow_misrouting flags, each mapping to the task
// the pipeline should rewind to (or, for skip_to_task3, jump to).
const (
	ScenarioStopAtTask1 = "stop_at_task1"
	ScenarioStopAtTask2 = "stop_at_task2"
	ScenarioSkipToTask3 = "skip_to_task3"
)

// ScenarioTargets maps each workflow scenario to its target task ID.
var ScenarioTargets = map[string]int{
	ScenarioStopAtTask1: 1,
	ScenarioStopAtTask2: 2,
	ScenarioSkipToTask3: 3,
}

var validCategories = map[string]bool{
	CategoryWorkflowMisrouting: true,
	CategoryQualityIssue:       true,
	CategoryConsensusMismatch:  true,
	CategoryDataError:          true,
	CategoryGeneral:            true,
}

// FlagOpts holds parameters for filing a flag.
type FlagOpts struct {
	DiscussionID string
	// TaskID is the task judged defective. For workflow_misrouting flags it
	// is overridden by the scenario's target task.
	TaskID            int
	Reason            string
	Category          string
	FlaggedFromTaskID int
	WorkflowScenario  string
	FlaggedBy         string
	Role              string
}

// FlagTask files a flag and immediately moves the target task to flagged.
// Annotators may not file quality_issue flags; workflow_misrouting requires a
// known scenario, whose target task replaces the caller-supplied TaskID. A
// skip_to_task3 scenario additionally sets the discussion's skip override and
// unlocks task 3.
func FlagTask(db *gorm.DB, opts FlagOpts) (*models.Flag, error) {
	if opts.DiscussionID == "" {
		return nil, fmt.Errorf("flagging: discussionID is required: %w", faults.ErrMalformedInput)
	}
	if len(opts.Reason) < MinReasonLength {
		return nil, fmt.Errorf("flagging: reason must be at least %d characters: %w",
			MinReasonLength, faults.ErrMalformedInput)
	}
	if !validCategories[opts.Category] {
		return nil, fmt.Errorf("flagging: unknown category %q: %w", opts.Category, faults.ErrMalformedInput)
	}
	if opts.Category == CategoryQualityIssue && opts.Role == RoleAnnotator {
		return nil, fmt.Errorf("flagging: role %q may not file %s flags: %w",
			opts.Role, CategoryQualityIssue, faults.ErrMalformedInput)
	}

	targetTask := opts.TaskID
	if opts.Category == CategoryWorkflowMisrouting {
		target, ok := ScenarioTargets[opts.WorkflowScenario]
		if !ok {
			return nil, fmt.Errorf("flagging: %s requires a workflow scenario, got %q: %w",
				CategoryWorkflowMisrouting, opts.WorkflowScenario, faults.ErrMalformedInput)
		}
		targetTask = target
	} else if opts.WorkflowScenario != "" {
		return nil, fmt.Errorf("flagging: scenario %q only valid for %s flags: %w",
			opts.WorkflowScenario, CategoryWorkflowMisrouting, faults.ErrMalformedInput)
	}
	if !task.ValidTaskID(targetTask) {
		return nil, fmt.Errorf("flagging: invalid task ID %d: %w", targetTask, faults.ErrMalformedInput)
	}

	flag := models.Flag{
		DiscussionID:      opts.DiscussionID,
		TaskID:            targetTask,
		Category:          opts.Category,
		Reason:            opts.Reason,
		WorkflowScenario:  opts.WorkflowScenario,
		FlaggedFromTaskID: opts.FlaggedFromTaskID,
		FlaggedBy:         opts.FlaggedBy,
		FlaggedByRole:     opts.Role,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var slot models.TaskSlot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("discussion_id = ? AND task_id = ?", opts.DiscussionID, targetTask).
			First(&slot).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("flagging: slot %s/%d: %w", opts.DiscussionID, targetTask, faults.ErrNotFound)
			}
			return fmt.Errorf("flagging: lock slot %s/%d: %w", opts.DiscussionID, targetTask, err)
		}

		if err := tx.Create(&flag).Error; err != nil {
			return fmt.Errorf("flagging: create flag: %w", err)
		}

		// A flag may pin any status, including locked: an upstream flag is
		// exactly how a locked task gets held.
		if err := task.SetStatus(tx, opts.DiscussionID, targetTask, task.StatusFlagged); err != nil {
			return err
		}

		if opts.WorkflowScenario == ScenarioSkipToTask3 {
			if err := tx.Model(&models.Discussion{}).
				Where("id = ?", opts.DiscussionID).
				Update("skip_to_task3", true).Error; err != nil {
				return fmt.Errorf("flagging: set skip override %s: %w", opts.DiscussionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

// Resolve marks a flag resolved and re-derives the task's status from raw
// facts so normal workflow rules resume. When other unresolved flags remain
// on the same task, the task stays flagged.
func Resolve(db *gorm.DB, flagID uint, resolvedBy string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var flag models.Flag
		if err := tx.Where("id = ?", flagID).First(&flag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("flagging: flag %d: %w", flagID, faults.ErrNotFound)
			}
			return fmt.Errorf("flagging: get flag %d: %w", flagID, err)
		}
		if flag.Resolved {
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.Flag{}).Where("id = ?", flagID).Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": resolvedBy,
			"resolved_at": now,
		}).Error; err != nil {
			return fmt.Errorf("flagging: resolve flag %d: %w", flagID, err)
		}

		remaining, err := task.HasUnresolvedFlag(tx, flag.DiscussionID, flag.TaskID)
		if err != nil {
			return err
		}
		if remaining {
			return nil
		}
		_, err = statusfix.FixTask(tx, flag.DiscussionID, flag.TaskID)
		return err
	})
}

// ListFilters holds optional filters for listing flags.
type ListFilters struct {
	DiscussionID string
	Resolved     *bool
	Category     string
}

// List returns flags matching the given filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Flag, error) {
	q := db.Model(&models.Flag{})
	if filters.DiscussionID != "" {
		q = q.Where("discussion_id = ?", filters.DiscussionID)
	}
	if filters.Resolved != nil {
		q = q.Where("resolved = ?", *filters.Resolved)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}
	var flags []models.Flag
	if err := q.Order("created_at DESC").Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("flagging: list: %w", err)
	}
	return flags, nil
}
