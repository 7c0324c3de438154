package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskCount is the number of sequential review tasks per discussion.
const TaskCount = 3

// RequiredAnnotators returns the fixed annotator quota for a task.
// Policy constants: task1=3, task2=3, task3=5.
func RequiredAnnotators(taskID int) int {
	if taskID == 3 {
		return 5
	}
	return 3
}

// ValidTaskID reports whether taskID names one of the three tasks.
func ValidTaskID(taskID int) bool {
	return taskID >= 1 && taskID <= TaskCount
}

// CreateOpts holds parameters for creating a new discussion.
type CreateOpts struct {
	ID           string
	Title        string
	URL          string
	Repository   string
	Language     string
	Release      string
	QuestionBody string
	BatchID      string
}

// CreateDiscussion creates a discussion with its three task slots. Task 1
// starts unlocked; tasks 2 and 3 start locked.
func CreateDiscussion(db *gorm.DB, opts CreateOpts) (*models.Discussion, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("task: discussion ID is required: %w", faults.ErrMalformedInput)
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("task: title is required: %w", faults.ErrMalformedInput)
	}

	disc := models.Discussion{
		ID:           opts.ID,
		Title:        opts.Title,
		URL:          opts.URL,
		Repository:   opts.Repository,
		Language:     opts.Language,
		Release:      opts.Release,
		QuestionBody: opts.QuestionBody,
		BatchID:      opts.BatchID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&disc).Error; err != nil {
			return fmt.Errorf("task: create discussion %s: %w", opts.ID, err)
		}
		for taskID := 1; taskID <= TaskCount; taskID++ {
			status := StatusLocked
			if taskID == 1 {
				status = StatusUnlocked
			}
			slot := models.TaskSlot{
				DiscussionID:       disc.ID,
				TaskID:             taskID,
				Status:             string(status),
				RequiredAnnotators: RequiredAnnotators(taskID),
			}
			if err := tx.Create(&slot).Error; err != nil {
				return fmt.Errorf("task: create slot %s/%d: %w", disc.ID, taskID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &disc, nil
}

// GetDiscussion retrieves a discussion with its task slots.
func GetDiscussion(db *gorm.DB, id string) (*models.Discussion, error) {
	var disc models.Discussion
	if err := db.Preload("Tasks").Where("id = ?", id).First(&disc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: discussion %s: %w", id, faults.ErrNotFound)
		}
		return nil, fmt.Errorf("task: get discussion %s: %w", id, err)
	}
	return &disc, nil
}

// GetSlot retrieves one task slot.
func GetSlot(db *gorm.DB, discussionID string, taskID int) (*models.TaskSlot, error) {
	var slot models.TaskSlot
	err := db.Where("discussion_id = ? AND task_id = ?", discussionID, taskID).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: slot %s/%d: %w", discussionID, taskID, faults.ErrNotFound)
		}
		return nil, fmt.Errorf("task: get slot %s/%d: %w", discussionID, taskID, err)
	}
	return &slot, nil
}

// HasUnresolvedFlag reports whether the task carries an unresolved flag.
func HasUnresolvedFlag(db *gorm.DB, discussionID string, taskID int) (bool, error) {
	var count int64
	err := db.Model(&models.Flag{}).
		Where("discussion_id = ? AND task_id = ? AND resolved = ?", discussionID, taskID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("task: count flags %s/%d: %w", discussionID, taskID, err)
	}
	return count > 0, nil
}

// SubmitAnnotation upserts an annotation by its (discussion, user, task)
// composite key and recomputes the slot's annotator count as a projection
// over the annotations table. The slot row is locked for the duration so two
// concurrent submissions cannot lose an increment. Promotes unlocked →
// ready_for_consensus once the quota is met and no unresolved flag exists.
func SubmitAnnotation(db *gorm.DB, discussionID, userID string, taskID int, data map[string]interface{}) (*models.Annotation, error) {
	if discussionID == "" || userID == "" {
		return nil, fmt.Errorf("task: discussionID and userID are required: %w", faults.ErrMalformedInput)
	}
	if !ValidTaskID(taskID) {
		return nil, fmt.Errorf("task: invalid task ID %d: %w", taskID, faults.ErrMalformedInput)
	}

	ann := models.Annotation{
		DiscussionID: discussionID,
		UserID:       userID,
		TaskID:       taskID,
	}
	if err := ann.SetData(data); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var slot models.TaskSlot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("discussion_id = ? AND task_id = ?", discussionID, taskID).
			First(&slot).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("task: slot %s/%d: %w", discussionID, taskID, faults.ErrNotFound)
			}
			return fmt.Errorf("task: lock slot %s/%d: %w", discussionID, taskID, err)
		}

		switch Status(slot.Status) {
		case StatusLocked, StatusCompleted, StatusReadyForNext:
			return fmt.Errorf("task: cannot annotate %s/%d in status %q: %w",
				discussionID, taskID, slot.Status, faults.ErrInvalidTransition)
		case StatusBlocked, StatusFlagged:
			return fmt.Errorf("task: %s/%d is %s: %w",
				discussionID, taskID, slot.Status, faults.ErrFlagBlocked)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "discussion_id"}, {Name: "user_id"}, {Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&ann).Error; err != nil {
			return fmt.Errorf("task: upsert annotation %s/%s/%d: %w", discussionID, userID, taskID, err)
		}

		var count int64
		if err := tx.Model(&models.Annotation{}).
			Where("discussion_id = ? AND task_id = ?", discussionID, taskID).
			Distinct("user_id").
			Count(&count).Error; err != nil {
			return fmt.Errorf("task: count annotators %s/%d: %w", discussionID, taskID, err)
		}

		updates := map[string]interface{}{
			"annotator_count": count,
			"updated_at":      time.Now(),
		}
		if Status(slot.Status) == StatusUnlocked && int(count) >= slot.RequiredAnnotators {
			flagged, err := hasUnresolvedFlagTx(tx, discussionID, taskID)
			if err != nil {
				return err
			}
			if !flagged {
				updates["status"] = string(StatusReadyForConsensus)
			}
		}
		if err := tx.Model(&models.TaskSlot{}).
			Where("discussion_id = ? AND task_id = ?", discussionID, taskID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("task: update slot %s/%d: %w", discussionID, taskID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ann, nil
}

// GetAnnotations returns annotations for a discussion, optionally filtered by
// task (taskID = 0 means all tasks).
func GetAnnotations(db *gorm.DB, discussionID string, taskID int) ([]models.Annotation, error) {
	q := db.Where("discussion_id = ?", discussionID)
	if taskID != 0 {
		if !ValidTaskID(taskID) {
			return nil, fmt.Errorf("task: invalid task ID %d: %w", taskID, faults.ErrMalformedInput)
		}
		q = q.Where("task_id = ?", taskID)
	}
	var anns []models.Annotation
	if err := q.Order("task_id ASC, user_id ASC").Find(&anns).Error; err != nil {
		return nil, fmt.Errorf("task: list annotations %s: %w", discussionID, err)
	}
	return anns, nil
}

// Transition moves a task slot to a new status after validating the
// transition, cascading the unlock of the next task when a slot reaches
// ready_for_next.
func Transition(db *gorm.DB, discussionID string, taskID int, to Status) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, discussionID, taskID, to)
	})
}

func transitionTx(tx *gorm.DB, discussionID string, taskID int, to Status) error {
	var slot models.TaskSlot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("discussion_id = ? AND task_id = ?", discussionID, taskID).
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("task: slot %s/%d: %w", discussionID, taskID, faults.ErrNotFound)
		}
		return fmt.Errorf("task: lock slot %s/%d: %w", discussionID, taskID, err)
	}

	from := Status(slot.Status)
	if !IsValidTransition(from, to) {
		return fmt.Errorf("task: %s/%d cannot go %q → %q: %w",
			discussionID, taskID, from, to, faults.ErrInvalidTransition)
	}

	if err := setStatusTx(tx, discussionID, taskID, to); err != nil {
		return err
	}

	if to == StatusReadyForNext && taskID < TaskCount {
		if err := unlockTx(tx, discussionID, taskID+1); err != nil {
			return err
		}
	}
	return nil
}

// SetStatus writes a status directly, without transition validation. Used by
// the reconciliation engine, which re-derives correct state from raw facts.
func SetStatus(db *gorm.DB, discussionID string, taskID int, to Status) error {
	return setStatusTx(db, discussionID, taskID, to)
}

// Unlock moves a locked task to unlocked. A no-op for tasks already past
// locked.
func Unlock(db *gorm.DB, discussionID string, taskID int) error {
	return unlockTx(db, discussionID, taskID)
}

func setStatusTx(tx *gorm.DB, discussionID string, taskID int, to Status) error {
	result := tx.Model(&models.TaskSlot{}).
		Where("discussion_id = ? AND task_id = ?", discussionID, taskID).
		Updates(map[string]interface{}{"status": string(to), "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("task: set status %s/%d: %w", discussionID, taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task: slot %s/%d: %w", discussionID, taskID, faults.ErrNotFound)
	}
	return nil
}

func unlockTx(tx *gorm.DB, discussionID string, taskID int) error {
	err := tx.Model(&models.TaskSlot{}).
		Where("discussion_id = ? AND task_id = ? AND status = ?", discussionID, taskID, string(StatusLocked)).
		Updates(map[string]interface{}{"status": string(StatusUnlocked), "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("task: unlock %s/%d: %w", discussionID, taskID, err)
	}
	return nil
}

func hasUnresolvedFlagTx(tx *gorm.DB, discussionID string, taskID int) (bool, error) {
	var count int64
	err := tx.Model(&models.Flag{}).
		Where("discussion_id = ? AND task_id = ? AND resolved = ?", discussionID, taskID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("task: count flags %s/%d: %w", discussionID, taskID, err)
	}
	return count > 0, nil
}
